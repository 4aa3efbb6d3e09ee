package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"swapmarket/internal/models"
)

const featuredKey = "catalog:featured"

var ErrMiss = errors.New("cache miss")

// FeaturedCache stores the featured listing. Readers still filter the
// cached items for eligibility, so a stale entry can only hide items.
type FeaturedCache interface {
	Get(ctx context.Context) ([]models.Item, error)
	Set(ctx context.Context, items []models.Item) error
	Invalidate(ctx context.Context) error
}

type RedisFeatured struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisFeatured(client *redis.Client, ttl time.Duration) *RedisFeatured {
	return &RedisFeatured{client: client, ttl: ttl}
}

func (c *RedisFeatured) Get(ctx context.Context) ([]models.Item, error) {
	raw, err := c.client.Get(ctx, featuredKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get featured: %w", err)
	}
	var items []models.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode featured: %w", err)
	}
	return items, nil
}

func (c *RedisFeatured) Set(ctx context.Context, items []models.Item) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode featured: %w", err)
	}
	return c.client.Set(ctx, featuredKey, raw, c.ttl).Err()
}

func (c *RedisFeatured) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, featuredKey).Err()
}

// NoFeatured never caches.
type NoFeatured struct{}

func (NoFeatured) Get(context.Context) ([]models.Item, error) { return nil, ErrMiss }
func (NoFeatured) Set(context.Context, []models.Item) error   { return nil }
func (NoFeatured) Invalidate(context.Context) error           { return nil }
