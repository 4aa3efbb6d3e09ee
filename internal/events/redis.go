package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// StreamPublisher appends events to a Redis stream read by the worker's
// consumer group.
type StreamPublisher struct {
	client *redis.Client
	stream string
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream}
}

func (p *StreamPublisher) Publish(ctx context.Context, event Event) error {
	body, err := Encode(event)
	if err != nil {
		return err
	}
	_, err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type":    event.Type,
			"payload": string(body),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// Close is a no-op; the Redis client is shared and closed by its owner.
func (p *StreamPublisher) Close() error { return nil }

// FromStream extracts the event carried by a stream entry.
func FromStream(values map[string]any) (Event, error) {
	raw, ok := values["payload"].(string)
	if !ok {
		return Event{}, fmt.Errorf("stream entry has no payload")
	}
	return Decode([]byte(raw))
}
