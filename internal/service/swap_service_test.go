package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swapmarket/internal/events"
	"swapmarket/internal/ledger"
	"swapmarket/internal/models"
	"swapmarket/internal/repository"
)

func pointsSwap(requester models.User, item models.Item, offered int) CreateSwapInput {
	return CreateSwapInput{
		RequesterID:   requester.ID,
		ItemID:        item.ID,
		SwapType:      models.SwapTypePoints,
		PointsOffered: offered,
		Message:       "Would love this one",
	}
}

func TestPointsSwapSettlesLedgers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	owner := f.user(t, "owner", 0)
	requester := f.user(t, "requester", 100)
	item := f.listed(t, owner, 40)
	f.events.Drain()

	swap, err := f.swaps.Create(ctx, pointsSwap(requester, item, 40))
	require.NoError(t, err)
	require.Equal(t, models.SwapStatusPending, swap.Status)
	require.Equal(t, owner.ID, swap.ReceiverID)
	require.Contains(t, f.storedItem(t, item.ID).SwapRequests, swap.ID)

	swap, err = f.swaps.Accept(ctx, swap.ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, models.SwapStatusAccepted, swap.Status)

	swap, err = f.swaps.Complete(ctx, swap.ID, requester.ID)
	require.NoError(t, err)
	require.Equal(t, models.SwapStatusCompleted, swap.Status)

	gotRequester := f.reload(t, requester.ID)
	gotOwner := f.reload(t, owner.ID)
	require.Equal(t, 60, gotRequester.Points)
	require.Equal(t, 40, gotRequester.Stats.PointsSpent)
	require.Equal(t, 40, gotOwner.Points)
	require.Equal(t, 40, gotOwner.Stats.PointsEarned)
	require.Equal(t, 1, gotRequester.Stats.ItemsSwapped)
	require.Equal(t, 1, gotOwner.Stats.ItemsSwapped)
	require.True(t, ledger.Balanced(gotRequester))
	require.True(t, ledger.Balanced(gotOwner))

	stored := f.storedItem(t, item.ID)
	require.Equal(t, models.ItemStatusSwapped, stored.Status)
	require.False(t, stored.IsAvailable)
	require.Equal(t, owner.ID, stored.UserID)

	require.Equal(t, []string{
		events.TypeSwapCreated,
		events.TypeSwapAccepted,
		events.TypeSwapCompleted,
	}, f.eventTypes())
}

func TestCompleteWithInsufficientPointsChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	owner := f.user(t, "owner", 5)
	requester := f.user(t, "requester", 10)
	item := f.listed(t, owner, 40)

	swap, err := f.swaps.Create(ctx, pointsSwap(requester, item, 40))
	require.NoError(t, err)
	_, err = f.swaps.Accept(ctx, swap.ID, owner.ID)
	require.NoError(t, err)

	_, err = f.swaps.Complete(ctx, swap.ID, requester.ID)
	require.ErrorIs(t, err, ErrInsufficientPoints)

	require.Equal(t, models.SwapStatusAccepted, f.storedSwap(t, swap.ID).Status)
	stored := f.storedItem(t, item.ID)
	require.Equal(t, models.ItemStatusActive, stored.Status)
	require.True(t, stored.IsAvailable)
	require.Equal(t, 10, f.reload(t, requester.ID).Points)
	require.Equal(t, 5, f.reload(t, owner.ID).Points)
	require.Zero(t, f.reload(t, owner.ID).Stats.ItemsSwapped)
}

func TestDirectSwapMovesNoPoints(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	owner := f.user(t, "owner", 7)
	requester := f.user(t, "requester", 3)
	item := f.listed(t, owner, 40)

	swap, err := f.swaps.Create(ctx, CreateSwapInput{
		RequesterID:   requester.ID,
		ItemID:        item.ID,
		SwapType:      models.SwapTypeDirect,
		PointsOffered: 25,
	})
	require.NoError(t, err)
	require.Zero(t, swap.PointsOffered)

	_, err = f.swaps.Accept(ctx, swap.ID, owner.ID)
	require.NoError(t, err)
	_, err = f.swaps.Complete(ctx, swap.ID, owner.ID)
	require.NoError(t, err)

	require.Equal(t, 3, f.reload(t, requester.ID).Points)
	require.Equal(t, 7, f.reload(t, owner.ID).Points)
	require.Equal(t, 1, f.reload(t, requester.ID).Stats.ItemsSwapped)
	require.Equal(t, models.ItemStatusSwapped, f.storedItem(t, item.ID).Status)
}

func TestCreateSwapRejectsBadRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	owner := f.user(t, "owner", 0)
	requester := f.user(t, "requester", 100)
	item := f.listed(t, owner, 40)
	pending, err := f.items.Create(ctx, owner.ID, itemInput("Unapproved coat", 20))
	require.NoError(t, err)

	cases := []struct {
		name  string
		input CreateSwapInput
		want  error
	}{
		{"own item", pointsSwap(owner, item, 40), ErrValidation},
		{"item not approved", pointsSwap(requester, pending, 20), ErrValidation},
		{"offer differs from value", pointsSwap(requester, item, 39), ErrValidation},
		{"zero points", pointsSwap(requester, item, 0), ErrValidation},
		{"unknown swap type", CreateSwapInput{RequesterID: requester.ID, ItemID: item.ID, SwapType: "barter"}, ErrValidation},
		{"missing item", CreateSwapInput{RequesterID: requester.ID, SwapType: models.SwapTypeDirect}, ErrValidation},
		{"receiver not owner", CreateSwapInput{
			RequesterID: requester.ID, ReceiverID: f.user(t, "other", 0).ID,
			ItemID: item.ID, SwapType: models.SwapTypeDirect,
		}, ErrValidation},
		{"message too long", CreateSwapInput{
			RequesterID: requester.ID, ItemID: item.ID, SwapType: models.SwapTypeDirect,
			Message: strings.Repeat("x", models.MaxSwapMessageLength+1),
		}, ErrValidation},
		{"unknown item", CreateSwapInput{RequesterID: requester.ID, ItemID: "nope", SwapType: models.SwapTypeDirect}, ErrNotFound},
		{"unknown requester", CreateSwapInput{RequesterID: "ghost", ItemID: item.ID, SwapType: models.SwapTypeDirect}, ErrNotAuthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.swaps.Create(ctx, tc.input)
			require.ErrorIs(t, err, tc.want)
		})
	}

	swaps, err := f.swaps.All(ctx, "", repository.Page{})
	require.NoError(t, err)
	require.Empty(t, swaps)
}

func TestPointsPolicies(t *testing.T) {
	cases := []struct {
		policy  PointsPolicy
		offered int
		ok      bool
	}{
		{PointsExact, 40, true},
		{PointsExact, 41, false},
		{PointsMinimum, 40, true},
		{PointsMinimum, 55, true},
		{PointsMinimum, 39, false},
		{PointsAny, 1, true},
		{PointsAny, 999, true},
		{PointsAny, 0, false},
	}
	for _, tc := range cases {
		err := tc.policy.check(tc.offered, 40)
		if tc.ok {
			require.NoError(t, err, "%s offering %d", tc.policy, tc.offered)
		} else {
			require.ErrorIs(t, err, ErrValidation, "%s offering %d", tc.policy, tc.offered)
		}
	}
}

func TestTransitionRules(t *testing.T) {
	ctx := context.Background()

	type step func(f *fixture, swapID string, owner, requester, stranger, admin models.User) (models.SwapRequest, error)
	accept := func(f *fixture, id string, owner, _, _, _ models.User) (models.SwapRequest, error) {
		return f.swaps.Accept(ctx, id, owner.ID)
	}
	reject := func(f *fixture, id string, owner, _, _, _ models.User) (models.SwapRequest, error) {
		return f.swaps.Reject(ctx, id, owner.ID)
	}
	cancel := func(f *fixture, id string, _, requester, _, _ models.User) (models.SwapRequest, error) {
		return f.swaps.Cancel(ctx, id, requester.ID)
	}
	complete := func(f *fixture, id string, _, requester, _, _ models.User) (models.SwapRequest, error) {
		return f.swaps.Complete(ctx, id, requester.ID)
	}

	cases := []struct {
		name  string
		setup []step
		act   step
		want  error
		final models.SwapStatus
	}{
		{"accept pending", nil, accept, nil, models.SwapStatusAccepted},
		{"reject pending", nil, reject, nil, models.SwapStatusRejected},
		{"cancel pending", nil, cancel, nil, models.SwapStatusCancelled},
		{"cancel accepted", []step{accept}, cancel, nil, models.SwapStatusCancelled},
		{"complete pending", nil, complete, ErrInvalidState, models.SwapStatusPending},
		{"reject accepted", []step{accept}, reject, ErrInvalidState, models.SwapStatusAccepted},
		{"accept twice", []step{accept}, accept, ErrInvalidState, models.SwapStatusAccepted},
		{"accept rejected", []step{reject}, accept, ErrInvalidState, models.SwapStatusRejected},
		{"cancel completed", []step{accept, complete}, cancel, ErrInvalidState, models.SwapStatusCompleted},
		{"complete cancelled", []step{cancel}, complete, ErrInvalidState, models.SwapStatusCancelled},
		{"requester accepts", nil, func(f *fixture, id string, _, requester, _, _ models.User) (models.SwapRequest, error) {
			return f.swaps.Accept(ctx, id, requester.ID)
		}, ErrNotAuthorized, models.SwapStatusPending},
		{"requester rejects", nil, func(f *fixture, id string, _, requester, _, _ models.User) (models.SwapRequest, error) {
			return f.swaps.Reject(ctx, id, requester.ID)
		}, ErrNotAuthorized, models.SwapStatusPending},
		{"receiver cancels", nil, func(f *fixture, id string, owner, _, _, _ models.User) (models.SwapRequest, error) {
			return f.swaps.Cancel(ctx, id, owner.ID)
		}, ErrNotAuthorized, models.SwapStatusPending},
		{"stranger completes", []step{accept}, func(f *fixture, id string, _, _, stranger, _ models.User) (models.SwapRequest, error) {
			return f.swaps.Complete(ctx, id, stranger.ID)
		}, ErrNotAuthorized, models.SwapStatusAccepted},
		{"admin completes", []step{accept}, func(f *fixture, id string, _, _, _, admin models.User) (models.SwapRequest, error) {
			return f.swaps.Complete(ctx, id, admin.ID)
		}, nil, models.SwapStatusCompleted},
		{"stranger on finished swap", []step{reject}, func(f *fixture, id string, _, _, stranger, _ models.User) (models.SwapRequest, error) {
			return f.swaps.Accept(ctx, id, stranger.ID)
		}, ErrNotAuthorized, models.SwapStatusRejected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, PointsExact)
			owner := f.user(t, "owner", 0)
			requester := f.user(t, "requester", 100)
			stranger := f.user(t, "stranger", 100)
			admin := f.admin(t)
			item := f.listed(t, owner, 40)

			swap, err := f.swaps.Create(ctx, pointsSwap(requester, item, 40))
			require.NoError(t, err)
			for _, s := range tc.setup {
				_, err := s(f, swap.ID, owner, requester, stranger, admin)
				require.NoError(t, err)
			}

			_, err = tc.act(f, swap.ID, owner, requester, stranger, admin)
			if tc.want == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.want)
			}
			require.Equal(t, tc.final, f.storedSwap(t, swap.ID).Status)
		})
	}
}

func TestOnlyOneSwapPerItemCompletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	owner := f.user(t, "owner", 0)
	first := f.user(t, "first", 100)
	second := f.user(t, "second", 100)
	third := f.user(t, "third", 100)
	item := f.listed(t, owner, 40)

	a, err := f.swaps.Create(ctx, pointsSwap(first, item, 40))
	require.NoError(t, err)
	b, err := f.swaps.Create(ctx, pointsSwap(second, item, 40))
	require.NoError(t, err)
	c, err := f.swaps.Create(ctx, pointsSwap(third, item, 40))
	require.NoError(t, err)

	_, err = f.swaps.Accept(ctx, a.ID, owner.ID)
	require.NoError(t, err)
	_, err = f.swaps.Accept(ctx, b.ID, owner.ID)
	require.NoError(t, err)

	_, err = f.swaps.Complete(ctx, a.ID, first.ID)
	require.NoError(t, err)

	_, err = f.swaps.Complete(ctx, b.ID, second.ID)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Equal(t, models.SwapStatusAccepted, f.storedSwap(t, b.ID).Status)
	require.Equal(t, 100, f.reload(t, second.ID).Points)

	_, err = f.swaps.Accept(ctx, c.ID, owner.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = f.swaps.Create(ctx, pointsSwap(third, item, 40))
	require.ErrorIs(t, err, ErrValidation)

	require.Equal(t, 40, f.reload(t, owner.ID).Points)
}

func TestConcurrentCompletesSettleOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	owner := f.user(t, "owner", 0)
	requester := f.user(t, "requester", 100)
	item := f.listed(t, owner, 40)

	swap, err := f.swaps.Create(ctx, pointsSwap(requester, item, 40))
	require.NoError(t, err)
	_, err = f.swaps.Accept(ctx, swap.ID, owner.ID)
	require.NoError(t, err)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(actor string) {
			defer wg.Done()
			_, err := f.swaps.Complete(ctx, swap.ID, actor)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInvalidState):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}([]string{owner.ID, requester.ID}[i%2])
	}
	wg.Wait()

	require.Equal(t, 1, succeeded)
	require.Equal(t, callers-1, conflicts)
	require.Equal(t, 60, f.reload(t, requester.ID).Points)
	require.Equal(t, 40, f.reload(t, owner.ID).Points)
}

func TestAcceptExpiredItemFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	owner := f.user(t, "owner", 0)
	requester := f.user(t, "requester", 100)
	item := f.listed(t, owner, 40)

	swap, err := f.swaps.Create(ctx, pointsSwap(requester, item, 40))
	require.NoError(t, err)

	f.clock.Advance(models.DefaultItemTTL + time.Hour)

	_, err = f.swaps.Accept(ctx, swap.ID, owner.ID)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Equal(t, models.SwapStatusPending, f.storedSwap(t, swap.ID).Status)

	stored := f.storedItem(t, item.ID)
	require.Equal(t, models.ItemStatusExpired, stored.Status)
	require.False(t, stored.IsAvailable)

	counts, err := f.store.Counts(ctx)
	require.NoError(t, err)
	require.Zero(t, counts.ActiveItems)
}

func TestCreateOnExpiredItemKeepsExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	owner := f.user(t, "owner", 0)
	requester := f.user(t, "requester", 100)
	item := f.listed(t, owner, 40)

	f.clock.Advance(models.DefaultItemTTL + time.Second)

	_, err := f.swaps.Create(ctx, pointsSwap(requester, item, 40))
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, models.ItemStatusExpired, f.storedItem(t, item.ID).Status)
}

func TestCompleteAfterRepricingIsRefused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	owner := f.user(t, "owner", 0)
	requester := f.user(t, "requester", 100)
	item := f.listed(t, owner, 40)

	swap, err := f.swaps.Create(ctx, pointsSwap(requester, item, 40))
	require.NoError(t, err)
	_, err = f.swaps.Accept(ctx, swap.ID, owner.ID)
	require.NoError(t, err)

	_, err = f.items.Update(ctx, item.ID, owner, itemInput("Denim jacket", 90))
	require.NoError(t, err)

	_, err = f.swaps.Complete(ctx, swap.ID, requester.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	require.Equal(t, models.SwapStatusAccepted, f.storedSwap(t, swap.ID).Status)
	require.Equal(t, 100, f.reload(t, requester.ID).Points)
	require.Zero(t, f.reload(t, owner.ID).Points)
	require.Equal(t, models.ItemStatusActive, f.storedItem(t, item.ID).Status)
}

func TestAcceptAfterRepricingIsRefused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	owner := f.user(t, "owner", 0)
	requester := f.user(t, "requester", 100)
	item := f.listed(t, owner, 40)

	swap, err := f.swaps.Create(ctx, pointsSwap(requester, item, 40))
	require.NoError(t, err)

	_, err = f.items.Update(ctx, item.ID, owner, itemInput("Denim jacket", 90))
	require.NoError(t, err)

	_, err = f.swaps.Accept(ctx, swap.ID, owner.ID)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Equal(t, models.SwapStatusPending, f.storedSwap(t, swap.ID).Status)
}

func TestRepricingDownKeepsMinimumOfferValid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsMinimum)
	owner := f.user(t, "owner", 0)
	requester := f.user(t, "requester", 100)
	item := f.listed(t, owner, 40)

	swap, err := f.swaps.Create(ctx, pointsSwap(requester, item, 40))
	require.NoError(t, err)
	_, err = f.swaps.Accept(ctx, swap.ID, owner.ID)
	require.NoError(t, err)

	_, err = f.items.Update(ctx, item.ID, owner, itemInput("Denim jacket", 30))
	require.NoError(t, err)

	_, err = f.swaps.Complete(ctx, swap.ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, 60, f.reload(t, requester.ID).Points)
	require.Equal(t, 40, f.reload(t, owner.ID).Points)
}

func TestDeleteSwap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	owner := f.user(t, "owner", 0)
	requester := f.user(t, "requester", 100)
	admin := f.admin(t)
	item := f.listed(t, owner, 40)

	swap, err := f.swaps.Create(ctx, pointsSwap(requester, item, 40))
	require.NoError(t, err)

	require.ErrorIs(t, f.swaps.Delete(ctx, swap.ID, owner.ID), ErrNotAuthorized)

	_, err = f.swaps.Accept(ctx, swap.ID, owner.ID)
	require.NoError(t, err)
	require.ErrorIs(t, f.swaps.Delete(ctx, swap.ID, requester.ID), ErrInvalidState)

	_, err = f.swaps.Cancel(ctx, swap.ID, requester.ID)
	require.NoError(t, err)
	require.NoError(t, f.swaps.Delete(ctx, swap.ID, requester.ID))

	require.NotContains(t, f.storedItem(t, item.ID).SwapRequests, swap.ID)
	_, err = f.swaps.Get(ctx, swap.ID, requester)
	require.ErrorIs(t, err, ErrNotFound)

	other, err := f.swaps.Create(ctx, pointsSwap(requester, item, 40))
	require.NoError(t, err)
	require.NoError(t, f.swaps.Delete(ctx, other.ID, admin.ID))
	require.Empty(t, f.storedItem(t, item.ID).SwapRequests)
}

func TestSwapReads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PointsExact)
	owner := f.user(t, "owner", 0)
	requester := f.user(t, "requester", 100)
	stranger := f.user(t, "stranger", 0)
	admin := f.admin(t)
	item := f.listed(t, owner, 40)

	first, err := f.swaps.Create(ctx, pointsSwap(requester, item, 40))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.swaps.Create(ctx, CreateSwapInput{RequesterID: requester.ID, ItemID: item.ID, SwapType: models.SwapTypeDirect})
	require.NoError(t, err)
	_, err = f.swaps.Reject(ctx, second.ID, owner.ID)
	require.NoError(t, err)

	_, err = f.swaps.Get(ctx, first.ID, stranger)
	require.ErrorIs(t, err, ErrNotAuthorized)
	got, err := f.swaps.Get(ctx, first.ID, admin)
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)

	mine, err := f.swaps.ForUser(ctx, requester.ID, "", repository.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, second.ID, mine[0].ID)

	rejected, err := f.swaps.ForUser(ctx, owner.ID, models.SwapStatusRejected, repository.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, rejected, 1)

	pending, err := f.swaps.PendingForReceiver(ctx, owner.ID, repository.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, first.ID, pending[0].ID)

	_, err = f.swaps.ForUser(ctx, owner.ID, "lost", repository.Page{})
	require.ErrorIs(t, err, ErrValidation)
}
