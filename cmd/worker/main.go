package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"swapmarket/internal/cache"
	"swapmarket/internal/config"
	"swapmarket/internal/log"
	"swapmarket/internal/queue"
	"swapmarket/internal/storage"
	"swapmarket/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis, "worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	objectStore, err := storage.NewObjectStore(cfg.ObjectStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	consumerName := cfg.Redis.Consumer
	if host, err := os.Hostname(); err == nil && consumerName == "" {
		consumerName = host
	}

	processor := tasks.NewProcessor(objectStore, logger)
	consumer := queue.NewConsumer(client, queue.Options{
		Stream:        cfg.Redis.Stream,
		Group:         cfg.Redis.Group,
		Consumer:      consumerName,
		ClaimInterval: cfg.Worker.ClaimInterval,
		ClaimIdle:     cfg.Worker.ClaimIdle,
	}, logger, processor)

	logger.Info().
		Str("stream", cfg.Redis.Stream).
		Str("group", cfg.Redis.Group).
		Str("consumer", consumerName).
		Msg("worker started")

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
	}
	logger.Info().Msg("worker exited cleanly")
}
