package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"swapmarket/internal/models"
	"swapmarket/internal/repository"
)

type itemRepo struct {
	run access
	now func() time.Time
}

func (r *itemRepo) Create(_ context.Context, item models.Item) error {
	return r.run(func(st *state) error {
		if _, ok := st.users[item.UserID]; !ok {
			return repository.ErrUserNotFound
		}
		item.UpdatedAt = item.CreatedAt
		st.items[item.ID] = item.Clone()
		return nil
	})
}

func (r *itemRepo) GetByID(_ context.Context, id string) (models.Item, error) {
	var found models.Item
	err := r.run(func(st *state) error {
		item, ok := st.items[id]
		if !ok {
			return repository.ErrItemNotFound
		}
		found = item.Clone()
		return nil
	})
	return found, err
}

func (r *itemRepo) GetForUpdate(ctx context.Context, id string) (models.Item, error) {
	return r.GetByID(ctx, id)
}

// Update keeps the stored likes, swap-request index, views and creation
// time; those have their own write paths.
func (r *itemRepo) Update(_ context.Context, item models.Item) error {
	return r.run(func(st *state) error {
		stored, ok := st.items[item.ID]
		if !ok {
			return repository.ErrItemNotFound
		}
		next := item.Clone()
		next.UserID = stored.UserID
		next.Likes = stored.Likes
		next.SwapRequests = stored.SwapRequests
		next.Views = stored.Views
		next.CreatedAt = stored.CreatedAt
		next.UpdatedAt = r.now()
		st.items[item.ID] = next
		return nil
	})
}

func (r *itemRepo) SetLiked(_ context.Context, itemID, userID string, liked bool) error {
	return r.run(func(st *state) error {
		item, ok := st.items[itemID]
		if !ok {
			return repository.ErrItemNotFound
		}
		if slices.Contains(item.Likes, userID) != liked {
			item.ToggleLike(userID)
		}
		st.items[itemID] = item
		return nil
	})
}

func (r *itemRepo) AddSwapRequest(_ context.Context, itemID, swapID string) error {
	return r.run(func(st *state) error {
		item, ok := st.items[itemID]
		if !ok {
			return repository.ErrItemNotFound
		}
		item.AddSwapRequest(swapID)
		st.items[itemID] = item
		return nil
	})
}

func (r *itemRepo) RemoveSwapRequest(_ context.Context, itemID, swapID string) error {
	return r.run(func(st *state) error {
		item, ok := st.items[itemID]
		if !ok {
			return repository.ErrItemNotFound
		}
		item.RemoveSwapRequest(swapID)
		st.items[itemID] = item
		return nil
	})
}

func (r *itemRepo) IncrementViews(_ context.Context, id string) (int64, error) {
	var views int64
	err := r.run(func(st *state) error {
		item, ok := st.items[id]
		if !ok {
			return repository.ErrItemNotFound
		}
		item.Views++
		views = item.Views
		st.items[id] = item
		return nil
	})
	return views, err
}

func (r *itemRepo) List(_ context.Context, filter repository.ItemFilter, page repository.Page) ([]models.Item, error) {
	var out []models.Item
	err := r.run(func(st *state) error {
		var items []models.Item
		for _, item := range st.items {
			if matchItem(item, filter) {
				items = append(items, item.Clone())
			}
		}
		slices.SortFunc(items, itemLess(filter.Sort))
		out = paginate(items, page)
		return nil
	})
	return out, err
}

func matchItem(item models.Item, f repository.ItemFilter) bool {
	if f.OnlyActive && (!item.IsEligible() || item.IsExpired(f.Now)) {
		return false
	}
	if f.Query != "" && !matchText(item, f.Query) {
		return false
	}
	if f.Category != "" && item.Category != f.Category {
		return false
	}
	if f.Size != "" && item.Size != f.Size {
		return false
	}
	if f.Condition != "" && item.Condition != f.Condition {
		return false
	}
	if f.Brand != "" && !strings.EqualFold(item.Brand, f.Brand) {
		return false
	}
	if f.Color != "" && !strings.EqualFold(item.Color, f.Color) {
		return false
	}
	if f.MinPoints > 0 && item.PointsValue < f.MinPoints {
		return false
	}
	if f.MaxPoints > 0 && item.PointsValue > f.MaxPoints {
		return false
	}
	if f.OwnerID != "" && item.UserID != f.OwnerID {
		return false
	}
	if f.Featured && !item.IsFeatured {
		return false
	}
	return true
}

// matchText requires every query word to appear in the title, description,
// brand or tags.
func matchText(item models.Item, query string) bool {
	haystack := strings.ToLower(strings.Join(
		append([]string{item.Title, item.Description, item.Brand}, item.Tags...), " "))
	for _, word := range strings.Fields(strings.ToLower(query)) {
		if !strings.Contains(haystack, word) {
			return false
		}
	}
	return true
}

func itemLess(sort string) func(a, b models.Item) int {
	newest := func(a, b models.Item) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	}
	switch sort {
	case repository.SortOldest:
		return func(a, b models.Item) int { return -newest(a, b) }
	case repository.SortPointsAsc:
		return func(a, b models.Item) int {
			if a.PointsValue != b.PointsValue {
				return a.PointsValue - b.PointsValue
			}
			return newest(a, b)
		}
	case repository.SortPointsDesc:
		return func(a, b models.Item) int {
			if a.PointsValue != b.PointsValue {
				return b.PointsValue - a.PointsValue
			}
			return newest(a, b)
		}
	case repository.SortViews:
		return func(a, b models.Item) int {
			if a.Views != b.Views {
				if b.Views > a.Views {
					return 1
				}
				return -1
			}
			return newest(a, b)
		}
	default:
		return newest
	}
}
