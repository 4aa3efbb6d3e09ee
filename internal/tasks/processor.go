package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"swapmarket/internal/events"
	"swapmarket/internal/storage"
)

// Processor reacts to domain events read from the stream.
type Processor struct {
	objects storage.Objects
	logger  zerolog.Logger
}

func NewProcessor(objects storage.Objects, logger zerolog.Logger) *Processor {
	return &Processor{
		objects: objects,
		logger:  logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	event, err := events.FromStream(msg.Values)
	if err != nil {
		// A malformed entry will never decode; log it and let it be acked.
		p.logger.Error().Err(err).Str("message_id", msg.ID).Msg("drop undecodable event")
		return nil
	}
	return p.HandleEvent(ctx, event)
}

func (p *Processor) HandleEvent(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.TypeItemRemoved:
		return p.handleItemRemoved(ctx, event)
	case events.TypeSwapCompleted:
		p.logger.Info().
			Str("swap_id", event.SwapID).
			Str("item_id", event.ItemID).
			Str("requester_id", event.RequesterID).
			Str("receiver_id", event.ReceiverID).
			Str("swap_type", event.SwapType).
			Int("points", event.PointsOffered).
			Time("occurred_at", event.OccurredAt).
			Msg("exchange completed")
		return nil
	case events.TypeSwapCreated, events.TypeSwapAccepted, events.TypeSwapRejected,
		events.TypeSwapCancelled, events.TypeSwapDeleted:
		p.logger.Info().
			Str("type", event.Type).
			Str("swap_id", event.SwapID).
			Str("actor_id", event.ActorID).
			Msg("swap event")
		return nil
	default:
		p.logger.Warn().Str("type", event.Type).Msg("unknown event type")
		return nil
	}
}

// handleItemRemoved deletes the photos of a removed item. Every key is
// attempted; the joined error keeps the entry pending for a retry.
func (p *Processor) handleItemRemoved(ctx context.Context, event events.Event) error {
	var errs []error
	for _, key := range event.ObjectKeys {
		if err := p.objects.Remove(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	p.logger.Info().
		Str("item_id", event.ItemID).
		Int("objects", len(event.ObjectKeys)).
		Msg("item images removed")
	return nil
}
