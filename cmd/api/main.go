package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/bizledger-backend/api"
	"github.com/angelmondragon/bizledger-backend/api/routes"
	"github.com/angelmondragon/bizledger-backend/internal/accounts"
	"github.com/angelmondragon/bizledger-backend/internal/bills"
	"github.com/angelmondragon/bizledger-backend/internal/cache"
	"github.com/angelmondragon/bizledger-backend/internal/changefeed"
	"github.com/angelmondragon/bizledger-backend/internal/orders"
	"github.com/angelmondragon/bizledger-backend/internal/payments"
	"github.com/angelmondragon/bizledger-backend/internal/reports"
	"github.com/angelmondragon/bizledger-backend/internal/transactions"
	"github.com/angelmondragon/bizledger-backend/pkg/config"
	"github.com/angelmondragon/bizledger-backend/pkg/db"
	"github.com/angelmondragon/bizledger-backend/pkg/env"
	"github.com/angelmondragon/bizledger-backend/pkg/instance"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
	"github.com/angelmondragon/bizledger-backend/pkg/metrics"
	"github.com/angelmondragon/bizledger-backend/pkg/migrate"
	"github.com/angelmondragon/bizledger-backend/pkg/pubsub"
	"github.com/angelmondragon/bizledger-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Instance:    instance.GetID(),
		Format:      cfg.App.LogFormat,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient)
	requireResource(ctx, logg, "dev migrations", err)

	var redisClient *redis.Client
	if redisConfigured(cfg.Redis) {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(ctx, "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(ctx, "redis not configured: idempotency disabled, using in-process cache")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ledgerMetrics := metrics.NewLedgerMetrics(registry)
	cacheMetrics := metrics.NewCacheMetrics(registry)

	readCache, err := buildCache(cfg, redisClient, cacheMetrics)
	requireResource(ctx, logg, "cache", err)

	settings, err := payments.SettingsFromConfig(cfg.Ledger)
	requireResource(ctx, logg, "ledger settings", err)
	location, err := cfg.Ledger.Location()
	requireResource(ctx, logg, "report timezone", err)

	ordersRepo := orders.NewRepository(dbClient.DB())
	billsRepo := bills.NewRepository(dbClient.DB())
	accountsRepo := accounts.NewRepository(dbClient.DB())
	transactionsRepo := transactions.NewRepository(dbClient.DB())

	ordersService, err := orders.NewService(ordersRepo, readCache, logg)
	requireResource(ctx, logg, "orders service", err)
	billsService, err := bills.NewService(billsRepo, readCache, logg)
	requireResource(ctx, logg, "bills service", err)
	accountsService, err := accounts.NewService(accountsRepo, readCache, logg)
	requireResource(ctx, logg, "accounts service", err)
	transactionsService, err := transactions.NewService(transactionsRepo, accountsService, settings.DefaultPaymentMethod, ledgerMetrics, logg)
	requireResource(ctx, logg, "transactions service", err)

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Orders:       ordersRepo,
		Bills:        billsRepo,
		Transactions: transactionsRepo,
		Accounts:     accountsService,
		Cache:        readCache,
		Settings:     settings,
		Metrics:      ledgerMetrics,
		Logger:       logg,
	})
	requireResource(ctx, logg, "payments service", err)

	reportsService, err := reports.NewService(ordersRepo, billsRepo, transactionsRepo, reports.Options{
		SettlementCategoryID: settings.SettlementCategoryID,
		Location:             location,
	}, logg)
	requireResource(ctx, logg, "reports service", err)

	addr := ":" + env.Get("PORT", cfg.App.Port)
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"dialect": dbClient.Dialect(),
	})

	// An in-process cache only sees invalidations if this process consumes them.
	if !cfg.FeatureFlags.RedisCache || redisClient == nil {
		startLocalChangefeed(runCtx, cfg, logg, readCache, registry)
	}

	router := routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		registry,
		metrics.NewHTTPMetrics(registry),
		ordersService,
		billsService,
		paymentsService,
		accountsService,
		transactionsService,
		reportsService,
	)

	logg.Info(runCtx, "starting api server")
	if err := api.Serve(runCtx, api.NewServer(addr, router), logg); err != nil {
		logg.Error(runCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "api server stopped")
}

func redisConfigured(cfg config.RedisConfig) bool {
	return strings.TrimSpace(cfg.URL) != "" || strings.TrimSpace(cfg.Address) != ""
}

func buildCache(cfg *config.Config, redisClient *redis.Client, m *metrics.CacheMetrics) (cache.Cache, error) {
	if cfg.FeatureFlags.RedisCache && redisClient != nil {
		return cache.NewRedis(redisClient, cfg.Cache.TTL, m)
	}
	return cache.NewLRU(cfg.Cache.LRUSize, cfg.Cache.TTL, m)
}

// startLocalChangefeed runs the change consumer inside the api process. It is
// optional: without a subscription the cache relies on TTL expiry alone.
func startLocalChangefeed(ctx context.Context, cfg *config.Config, logg *logger.Logger, c cache.Cache, reg prometheus.Registerer) {
	if strings.TrimSpace(cfg.GCP.ProjectID) == "" || strings.TrimSpace(cfg.PubSub.ChangesSubscription) == "" {
		logg.Warn(ctx, "no change subscription configured, local cache relies on ttl")
		return
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "local changefeed disabled", err)
		return
	}
	consumer, err := changefeed.NewConsumer(c, pubsubClient.ChangesSubscription(), metrics.NewChangefeedMetrics(reg), logg)
	if err != nil {
		_ = pubsubClient.Close()
		logg.Error(ctx, "local changefeed disabled", err)
		return
	}

	go func() {
		defer pubsubClient.Close()
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "local changefeed stopped", err)
		}
	}()
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
