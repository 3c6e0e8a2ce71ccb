package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/bizledger-backend/internal/cache"
	"github.com/angelmondragon/bizledger-backend/internal/changefeed"
	"github.com/angelmondragon/bizledger-backend/pkg/config"
	"github.com/angelmondragon/bizledger-backend/pkg/instance"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
	"github.com/angelmondragon/bizledger-backend/pkg/metrics"
	"github.com/angelmondragon/bizledger-backend/pkg/pubsub"
	"github.com/angelmondragon/bizledger-backend/pkg/redis"
)

// The worker invalidates the shared Redis read cache. API processes running
// the in-process cache consume changes themselves.
func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "changefeed-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "changefeed-worker",
		Instance:    instance.GetID(),
		Format:      cfg.App.LogFormat,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer redisClient.Close()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	readCache, err := cache.NewRedis(redisClient, cfg.Cache.TTL, nil)
	requireResource(ctx, logg, "cache", err)

	consumer, err := changefeed.NewConsumer(readCache, pubsubClient.ChangesSubscription(), metrics.NewChangefeedMetrics(nil), logg)
	requireResource(ctx, logg, "changefeed consumer", err)

	svc, err := NewService(ServiceParams{
		Logger:   logg,
		Redis:    redisClient,
		PubSub:   pubsubClient,
		Consumer: consumer,
	})
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":          cfg.App.Env,
		"subscription": cfg.PubSub.ChangesSubscription,
	})
	logg.Info(runCtx, "changefeed worker ready")

	if err := svc.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "changefeed worker not working", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
