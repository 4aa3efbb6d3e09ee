package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"swapmarket/internal/config"
)

const redisPingTimeout = 5 * time.Second

// NewRedisClient connects to the Redis that backs the featured cache, swap
// locks and the event stream. name shows up in CLIENT LIST so the api and
// worker connections can be told apart.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, name string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		ClientName: "swapmarket-" + name,
	})

	ctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}
