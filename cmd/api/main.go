package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"swapmarket/internal/cache"
	"swapmarket/internal/config"
	"swapmarket/internal/events"
	"swapmarket/internal/handlers"
	"swapmarket/internal/jobs"
	"swapmarket/internal/lock"
	"swapmarket/internal/log"
	"swapmarket/internal/repository"
	"swapmarket/internal/repository/memory"
	"swapmarket/internal/repository/postgres"
	"swapmarket/internal/server"
	"swapmarket/internal/service"
	"swapmarket/internal/storage"
	"swapmarket/migrations"
)

// backends are the infrastructure pieces chosen by configuration.
type backends struct {
	store     repository.Store
	objects   storage.Objects
	locker    lock.Locker
	publisher events.Publisher
	featured  cache.FeaturedCache
	redis     *redis.Client
	checks    map[string]handlers.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, "api")

	ctx := context.Background()

	b, err := connect(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise backends")
	}

	swapLockTTL := cfg.Swaps.LockTimeout * 3
	if b.locker == nil {
		b.locker = lock.NewRedis(b.redis, swapLockTTL, cfg.Swaps.LockTimeout)
	}

	catalog := service.NewCatalogService(b.store.Items(), b.featured, cfg.Items.FeaturedLimit, time.Now, logger)
	services := handlers.Services{
		Auth:    service.NewAuthService(b.store, cfg.Security, logger),
		Items:   service.NewItemService(b.store, b.objects, b.publisher, b.featured, cfg.Items.TTL, time.Now, logger),
		Catalog: catalog,
		Swaps: service.NewSwapService(b.store, b.locker, b.publisher, b.featured,
			service.PointsPolicy(cfg.Swaps.PointsPolicy), time.Now, logger),
		Users: service.NewUserService(b.store),
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg.Environment, services, b.checks)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(catalog, cfg.Items.WarmSchedule, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, b)
}

func connect(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (backends, error) {
	if cfg.Storage.Driver == "memory" {
		logger.Warn().Msg("memory storage driver: data is lost on restart")
		store := memory.New()
		return backends{
			store:     store,
			objects:   storage.NewMemory("/objects"),
			locker:    lock.NewLocal(cfg.Swaps.LockTimeout),
			publisher: events.NopPublisher{},
			featured:  cache.NoFeatured{},
			checks:    map[string]handlers.Pinger{"store": store},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return backends{}, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Postgres.Migrate {
		if err := migrations.Apply(ctx, pool, logger); err != nil {
			return backends{}, fmt.Errorf("migrate: %w", err)
		}
	}
	store := postgres.NewStore(pool)

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis, "api")
	if err != nil {
		return backends{}, fmt.Errorf("connect redis: %w", err)
	}

	objectStore, err := storage.NewObjectStore(cfg.ObjectStore)
	if err != nil {
		return backends{}, fmt.Errorf("init object store: %w", err)
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	var publisher events.Publisher
	switch cfg.Events.Driver {
	case "redis":
		publisher = events.NewStreamPublisher(redisClient, cfg.Redis.Stream)
	case "amqp":
		publisher = events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Queue)
	default:
		publisher = events.NopPublisher{}
	}

	return backends{
		store:     store,
		objects:   objectStore,
		publisher: publisher,
		featured:  cache.NewRedisFeatured(redisClient, cfg.Items.FeaturedCacheTTL),
		redis:     redisClient,
		checks: map[string]handlers.Pinger{
			"database": store,
			"cache":    redisPinger{redisClient},
		},
	}, nil
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, b backends) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop(shutdownCtx)

	if err := b.publisher.Close(); err != nil {
		logger.Error().Err(err).Msg("event publisher close error")
	}
	b.store.Close()
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
