package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"swapmarket/internal/cache"
	"swapmarket/internal/events"
	"swapmarket/internal/ids"
	"swapmarket/internal/ledger"
	"swapmarket/internal/lock"
	"swapmarket/internal/models"
	"swapmarket/internal/repository"
)

// PointsPolicy decides which pointsOffered values a points swap accepts.
type PointsPolicy string

const (
	PointsExact   PointsPolicy = "exact"
	PointsMinimum PointsPolicy = "minimum"
	PointsAny     PointsPolicy = "any"
)

func (p PointsPolicy) check(offered, value int) error {
	if offered < 1 {
		return validationf("pointsOffered must be at least 1 for a points swap")
	}
	switch p {
	case PointsMinimum:
		if offered < value {
			return validationf("pointsOffered %d is below the item value %d", offered, value)
		}
	case PointsAny:
	default:
		if offered != value {
			return validationf("pointsOffered %d must equal the item value %d", offered, value)
		}
	}
	return nil
}

type SwapService struct {
	store    repository.Store
	locker   lock.Locker
	events   events.Publisher
	featured cache.FeaturedCache
	policy   PointsPolicy
	now      func() time.Time
	log      zerolog.Logger
}

func NewSwapService(
	store repository.Store,
	locker lock.Locker,
	publisher events.Publisher,
	featured cache.FeaturedCache,
	policy PointsPolicy,
	now func() time.Time,
	log zerolog.Logger,
) *SwapService {
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if featured == nil {
		featured = cache.NoFeatured{}
	}
	return &SwapService{
		store:    store,
		locker:   locker,
		events:   publisher,
		featured: featured,
		policy:   policy,
		now:      now,
		log:      log,
	}
}

type CreateSwapInput struct {
	RequesterID string
	// ReceiverID may be empty; it then defaults to the item owner.
	ReceiverID    string
	ItemID        string
	SwapType      models.SwapType
	PointsOffered int
	Message       string
}

func (s *SwapService) Create(ctx context.Context, input CreateSwapInput) (models.SwapRequest, error) {
	input.Message = strings.TrimSpace(input.Message)
	switch {
	case input.ItemID == "":
		return models.SwapRequest{}, validationf("item is required")
	case !input.SwapType.Valid():
		return models.SwapRequest{}, validationf("swapType must be direct or points")
	case utf8.RuneCountInString(input.Message) > models.MaxSwapMessageLength:
		return models.SwapRequest{}, validationf("message exceeds %d characters", models.MaxSwapMessageLength)
	case input.ReceiverID != "" && input.ReceiverID == input.RequesterID:
		return models.SwapRequest{}, validationf("cannot request a swap with yourself")
	}

	now := s.now()
	s.persistExpiry(ctx, input.ItemID, now)

	var swap models.SwapRequest
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Users().GetByID(ctx, input.RequesterID); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return notAuthorizedf("unknown requester")
			}
			return err
		}

		item, err := loadItem(ctx, tx.Items(), input.ItemID, true, now)
		if err != nil {
			return err
		}

		receiverID := input.ReceiverID
		if receiverID == "" {
			receiverID = item.UserID
		}
		switch {
		case receiverID != item.UserID:
			return validationf("receiver must be the item owner")
		case item.UserID == input.RequesterID:
			return validationf("cannot request a swap for your own item")
		case !item.IsEligible():
			return validationf("item is not available for swapping")
		}

		offered := 0
		if input.SwapType == models.SwapTypePoints {
			if err := s.policy.check(input.PointsOffered, item.PointsValue); err != nil {
				return err
			}
			offered = input.PointsOffered
		}

		swap = models.SwapRequest{
			ID:            ids.New(),
			RequesterID:   input.RequesterID,
			ReceiverID:    receiverID,
			ItemID:        item.ID,
			Status:        models.SwapStatusPending,
			SwapType:      input.SwapType,
			PointsOffered: offered,
			Message:       input.Message,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Swaps().Create(ctx, swap); err != nil {
			return err
		}
		return tx.Items().AddSwapRequest(ctx, item.ID, swap.ID)
	})
	if err != nil {
		return models.SwapRequest{}, translate(err)
	}

	s.log.Info().
		Str("swap_id", swap.ID).
		Str("item_id", swap.ItemID).
		Str("requester_id", swap.RequesterID).
		Str("swap_type", string(swap.SwapType)).
		Msg("swap requested")
	s.publish(ctx, events.TypeSwapCreated, swap, swap.RequesterID)
	return swap, nil
}

// Accept moves a pending swap to accepted. Only the receiver may accept,
// and the item must still be eligible.
func (s *SwapService) Accept(ctx context.Context, swapID, actorID string) (models.SwapRequest, error) {
	return s.transition(ctx, swapID, actorID, models.SwapStatusAccepted,
		func(swap models.SwapRequest, actor models.User) error {
			if actor.ID != swap.ReceiverID {
				return notAuthorizedf("only the receiver can accept")
			}
			return nil
		},
		func(tx repository.Tx, swap models.SwapRequest, now time.Time) error {
			item, err := loadItem(ctx, tx.Items(), swap.ItemID, true, now)
			if err != nil {
				return err
			}
			return s.checkSettleable(swap, item)
		})
}

func (s *SwapService) Reject(ctx context.Context, swapID, actorID string) (models.SwapRequest, error) {
	return s.transition(ctx, swapID, actorID, models.SwapStatusRejected,
		func(swap models.SwapRequest, actor models.User) error {
			if actor.ID != swap.ReceiverID {
				return notAuthorizedf("only the receiver can reject")
			}
			return nil
		}, nil)
}

func (s *SwapService) Cancel(ctx context.Context, swapID, actorID string) (models.SwapRequest, error) {
	return s.transition(ctx, swapID, actorID, models.SwapStatusCancelled,
		func(swap models.SwapRequest, actor models.User) error {
			if actor.ID != swap.RequesterID {
				return notAuthorizedf("only the requester can cancel")
			}
			return nil
		}, nil)
}

// Complete finalizes an accepted swap. The ledger transfer, the item
// status and the swap status commit together or not at all.
func (s *SwapService) Complete(ctx context.Context, swapID, actorID string) (models.SwapRequest, error) {
	swap, err := s.transition(ctx, swapID, actorID, models.SwapStatusCompleted,
		func(swap models.SwapRequest, actor models.User) error {
			if !swap.IsParty(actor.ID) && !actor.IsAdmin() {
				return notAuthorizedf("only the swap parties or an admin can complete")
			}
			return nil
		},
		func(tx repository.Tx, swap models.SwapRequest, now time.Time) error {
			return s.settle(ctx, tx, swap, now)
		})
	if err != nil {
		return swap, err
	}
	if err := s.featured.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("invalidate featured cache failed")
	}
	return swap, nil
}

func (s *SwapService) settle(ctx context.Context, tx repository.Tx, swap models.SwapRequest, now time.Time) error {
	item, err := loadItem(ctx, tx.Items(), swap.ItemID, true, now)
	if err != nil {
		return err
	}
	if err := s.checkSettleable(swap, item); err != nil {
		return err
	}

	// Lock both ledgers in id order so concurrent settlements touching
	// the same users cannot deadlock.
	userIDs := []string{swap.RequesterID, item.UserID}
	slices.Sort(userIDs)
	users := make(map[string]models.User, 2)
	for _, id := range slices.Compact(userIDs) {
		user, err := tx.Users().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		users[id] = user
	}
	requester, owner := users[swap.RequesterID], users[item.UserID]
	if requester.ID == owner.ID {
		return invalidStatef("requester owns the item")
	}

	if swap.SwapType == models.SwapTypePoints {
		if err := ledger.Transfer(&requester, &owner, swap.PointsOffered); err != nil {
			return err
		}
	}
	requester.Stats.ItemsSwapped++
	owner.Stats.ItemsSwapped++

	item.MarkSwapped()
	item.UpdatedAt = now
	if err := tx.Items().Update(ctx, item); err != nil {
		return err
	}
	if err := tx.Users().UpdateLedger(ctx, requester); err != nil {
		return err
	}
	return tx.Users().UpdateLedger(ctx, owner)
}

// checkSettleable re-checks the item against the swap at accept and
// complete time. The owner may have repriced the item since the request
// was made, so the offer is held to the policy again.
func (s *SwapService) checkSettleable(swap models.SwapRequest, item models.Item) error {
	if !item.IsEligible() {
		return invalidStatef("item is no longer available")
	}
	if swap.SwapType != models.SwapTypePoints {
		return nil
	}
	if err := s.policy.check(swap.PointsOffered, item.PointsValue); err != nil {
		return invalidStatef("offer no longer matches the item: %v", err)
	}
	return nil
}

// persistExpiry writes a lazily computed expiry in its own transaction, so
// a request that then fails on the expired item does not roll it back.
func (s *SwapService) persistExpiry(ctx context.Context, itemID string, now time.Time) {
	if itemID == "" {
		return
	}
	item, err := s.store.Items().GetByID(ctx, itemID)
	if err != nil || item.Status != models.ItemStatusActive || !item.IsExpired(now) {
		return
	}
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		_, err := loadItem(ctx, tx.Items(), itemID, true, now)
		return err
	})
	if err != nil {
		s.log.Warn().Err(err).Str("item_id", itemID).Msg("persist item expiry failed")
	}
}

type authorizeFunc func(swap models.SwapRequest, actor models.User) error
type applyFunc func(tx repository.Tx, swap models.SwapRequest, now time.Time) error

// transition runs one state change under the per-swap lock and inside a
// single transaction. Authorization is checked before the state so a
// stranger learns nothing about the swap's status.
func (s *SwapService) transition(
	ctx context.Context,
	swapID, actorID string,
	to models.SwapStatus,
	authorize authorizeFunc,
	apply applyFunc,
) (models.SwapRequest, error) {
	release, err := s.locker.Acquire(ctx, swapID)
	if err != nil {
		return models.SwapRequest{}, fmt.Errorf("lock swap %s: %w", swapID, err)
	}
	defer release()

	now := s.now()
	var (
		swap   models.SwapRequest
		from   models.SwapStatus
		itemID string
	)
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		swap, err = tx.Swaps().GetForUpdate(ctx, swapID)
		if err != nil {
			return err
		}
		itemID = swap.ItemID
		actor, err := tx.Users().GetByID(ctx, actorID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return notAuthorizedf("unknown actor")
			}
			return err
		}
		if err := authorize(swap, actor); err != nil {
			return err
		}
		if !swap.Status.CanTransition(to) {
			return invalidStatef("swap is %s and cannot become %s", swap.Status, to)
		}
		if apply != nil {
			if err := apply(tx, swap, now); err != nil {
				return err
			}
		}
		if err := tx.Swaps().UpdateStatus(ctx, swap.ID, to); err != nil {
			return err
		}
		from = swap.Status
		swap.Status = to
		swap.UpdatedAt = now
		return nil
	})
	if err != nil {
		if apply != nil {
			s.persistExpiry(ctx, itemID, now)
		}
		err = translate(err)
		s.log.Warn().Err(err).
			Str("swap_id", swapID).
			Str("actor_id", actorID).
			Str("to", string(to)).
			Msg("swap transition rejected")
		return models.SwapRequest{}, err
	}

	s.log.Info().
		Str("swap_id", swap.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor_id", actorID).
		Msg("swap transition")
	s.publish(ctx, "swap."+string(to), swap, actorID)
	return swap, nil
}

// Delete removes a swap request and its entry in the item's index. The
// requester or an admin may delete, except while the swap is accepted.
func (s *SwapService) Delete(ctx context.Context, swapID, actorID string) error {
	release, err := s.locker.Acquire(ctx, swapID)
	if err != nil {
		return fmt.Errorf("lock swap %s: %w", swapID, err)
	}
	defer release()

	var swap models.SwapRequest
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		swap, err = tx.Swaps().GetForUpdate(ctx, swapID)
		if err != nil {
			return err
		}
		actor, err := tx.Users().GetByID(ctx, actorID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return notAuthorizedf("unknown actor")
			}
			return err
		}
		if actor.ID != swap.RequesterID && !actor.IsAdmin() {
			return notAuthorizedf("only the requester or an admin can delete")
		}
		if swap.Status == models.SwapStatusAccepted {
			return invalidStatef("an accepted swap must be cancelled or completed first")
		}
		if err := tx.Items().RemoveSwapRequest(ctx, swap.ItemID, swap.ID); err != nil {
			return err
		}
		return tx.Swaps().Delete(ctx, swap.ID)
	})
	if err != nil {
		return translate(err)
	}

	s.log.Info().Str("swap_id", swapID).Str("actor_id", actorID).Msg("swap deleted")
	s.publish(ctx, events.TypeSwapDeleted, swap, actorID)
	return nil
}

// Get returns a swap visible to its parties and to admins.
func (s *SwapService) Get(ctx context.Context, swapID string, viewer models.User) (models.SwapRequest, error) {
	swap, err := s.store.Swaps().GetByID(ctx, swapID)
	if err != nil {
		return models.SwapRequest{}, translate(err)
	}
	if !swap.IsParty(viewer.ID) && !viewer.IsAdmin() {
		return models.SwapRequest{}, notAuthorizedf("not a party to this swap")
	}
	return swap, nil
}

// ForUser lists swaps where the user is requester or receiver.
func (s *SwapService) ForUser(ctx context.Context, userID string, status models.SwapStatus, page repository.Page) ([]models.SwapRequest, error) {
	if status != "" && !status.Valid() {
		return nil, validationf("unknown status %q", status)
	}
	swaps, err := s.store.Swaps().List(ctx, repository.SwapFilter{PartyID: userID, Status: status}, page)
	return swaps, translate(err)
}

// PendingForReceiver lists the requests waiting on the user's decision.
func (s *SwapService) PendingForReceiver(ctx context.Context, userID string, page repository.Page) ([]models.SwapRequest, error) {
	swaps, err := s.store.Swaps().List(ctx, repository.SwapFilter{
		ReceiverID: userID,
		Status:     models.SwapStatusPending,
	}, page)
	return swaps, translate(err)
}

// All lists every swap, for admins.
func (s *SwapService) All(ctx context.Context, status models.SwapStatus, page repository.Page) ([]models.SwapRequest, error) {
	if status != "" && !status.Valid() {
		return nil, validationf("unknown status %q", status)
	}
	swaps, err := s.store.Swaps().List(ctx, repository.SwapFilter{Status: status}, page)
	return swaps, translate(err)
}

func (s *SwapService) publish(ctx context.Context, eventType string, swap models.SwapRequest, actorID string) {
	err := s.events.Publish(ctx, events.Event{
		Type:          eventType,
		SwapID:        swap.ID,
		ItemID:        swap.ItemID,
		ActorID:       actorID,
		RequesterID:   swap.RequesterID,
		ReceiverID:    swap.ReceiverID,
		SwapType:      string(swap.SwapType),
		PointsOffered: swap.PointsOffered,
		OccurredAt:    s.now(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("swap_id", swap.ID).Str("event", eventType).Msg("publish event failed")
	}
}
