package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"swapmarket/internal/models"
	"swapmarket/internal/repository"
)

type swapRepo struct {
	run access
	now func() time.Time
}

func (r *swapRepo) Create(_ context.Context, swap models.SwapRequest) error {
	return r.run(func(st *state) error {
		if _, ok := st.users[swap.RequesterID]; !ok {
			return repository.ErrUserNotFound
		}
		if _, ok := st.users[swap.ReceiverID]; !ok {
			return repository.ErrUserNotFound
		}
		if _, ok := st.items[swap.ItemID]; !ok {
			return repository.ErrItemNotFound
		}
		swap.UpdatedAt = swap.CreatedAt
		st.swaps[swap.ID] = swap
		return nil
	})
}

func (r *swapRepo) GetByID(_ context.Context, id string) (models.SwapRequest, error) {
	var found models.SwapRequest
	err := r.run(func(st *state) error {
		swap, ok := st.swaps[id]
		if !ok {
			return repository.ErrSwapNotFound
		}
		found = swap
		return nil
	})
	return found, err
}

func (r *swapRepo) GetForUpdate(ctx context.Context, id string) (models.SwapRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *swapRepo) UpdateStatus(_ context.Context, id string, status models.SwapStatus) error {
	return r.run(func(st *state) error {
		swap, ok := st.swaps[id]
		if !ok {
			return repository.ErrSwapNotFound
		}
		swap.Status = status
		swap.UpdatedAt = r.now()
		st.swaps[id] = swap
		return nil
	})
}

// Delete removes the swap and, like the foreign key cascade in PostgreSQL,
// drops it from its item's swap-request index.
func (r *swapRepo) Delete(_ context.Context, id string) error {
	return r.run(func(st *state) error {
		swap, ok := st.swaps[id]
		if !ok {
			return repository.ErrSwapNotFound
		}
		delete(st.swaps, id)
		if item, ok := st.items[swap.ItemID]; ok {
			item.RemoveSwapRequest(id)
			st.items[swap.ItemID] = item
		}
		return nil
	})
}

func (r *swapRepo) List(_ context.Context, filter repository.SwapFilter, page repository.Page) ([]models.SwapRequest, error) {
	var out []models.SwapRequest
	err := r.run(func(st *state) error {
		var swaps []models.SwapRequest
		for _, swap := range st.swaps {
			if filter.PartyID != "" && !swap.IsParty(filter.PartyID) {
				continue
			}
			if filter.ReceiverID != "" && swap.ReceiverID != filter.ReceiverID {
				continue
			}
			if filter.Status != "" && swap.Status != filter.Status {
				continue
			}
			swaps = append(swaps, swap)
		}
		slices.SortFunc(swaps, func(a, b models.SwapRequest) int {
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
			return strings.Compare(b.ID, a.ID)
		})
		out = paginate(swaps, page)
		return nil
	})
	return out, err
}
