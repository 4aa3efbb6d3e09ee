// Package events publishes domain events after a state change commits.
// Publishing is best effort: the database is the source of truth and a
// lost event never rolls back a transition.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	TypeItemRemoved   = "item.removed"
	TypeSwapCreated   = "swap.created"
	TypeSwapAccepted  = "swap.accepted"
	TypeSwapRejected  = "swap.rejected"
	TypeSwapCancelled = "swap.cancelled"
	TypeSwapCompleted = "swap.completed"
	TypeSwapDeleted   = "swap.deleted"
)

type Event struct {
	Type          string    `json:"type"`
	ItemID        string    `json:"itemId,omitempty"`
	SwapID        string    `json:"swapId,omitempty"`
	ActorID       string    `json:"actorId,omitempty"`
	RequesterID   string    `json:"requesterId,omitempty"`
	ReceiverID    string    `json:"receiverId,omitempty"`
	SwapType      string    `json:"swapType,omitempty"`
	PointsOffered int       `json:"pointsOffered,omitempty"`
	ObjectKeys    []string  `json:"objectKeys,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

func Encode(event Event) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", event.Type, err)
	}
	return body, nil
}

func Decode(body []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return event, nil
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// Recorder keeps published events in memory. Tests use it to assert on
// what a service emitted.
type Recorder struct {
	events chan Event
}

func NewRecorder(size int) *Recorder {
	return &Recorder{events: make(chan Event, size)}
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	select {
	case r.events <- event:
		return nil
	default:
		return fmt.Errorf("recorder full, dropped %s", event.Type)
	}
}

func (r *Recorder) Close() error { return nil }

// Drain returns everything recorded so far.
func (r *Recorder) Drain() []Event {
	var out []Event
	for {
		select {
		case e := <-r.events:
			out = append(out, e)
		default:
			return out
		}
	}
}
