package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/cancelmem/cancelmem-backend/api/controllers"
	"github.com/cancelmem/cancelmem-backend/api/routes"
	"github.com/cancelmem/cancelmem-backend/internal/dashboard"
	"github.com/cancelmem/cancelmem-backend/internal/entitlements"
	"github.com/cancelmem/cancelmem-backend/internal/export"
	"github.com/cancelmem/cancelmem-backend/internal/subscriptions"
	stripewebhook "github.com/cancelmem/cancelmem-backend/internal/webhooks/stripe"
	"github.com/cancelmem/cancelmem-backend/pkg/config"
	"github.com/cancelmem/cancelmem-backend/pkg/db"
	"github.com/cancelmem/cancelmem-backend/pkg/idempotency"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
	"github.com/cancelmem/cancelmem-backend/pkg/metrics"
	"github.com/cancelmem/cancelmem-backend/pkg/migrate"
	"github.com/cancelmem/cancelmem-backend/pkg/redis"
	pkgstripe "github.com/cancelmem/cancelmem-backend/pkg/stripe"
)

const (
	webhookGuardTTL = 72 * time.Hour
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Env:         cfg.App.Env,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	deps := routes.Dependencies{
		ReadyChecks: map[string]controllers.Pinger{"database": dbClient},
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		deps.Store = redisClient
		deps.ReadyChecks["redis"] = redisClient
	} else {
		logg.Warn(context.Background(), "redis not configured; idempotency and rate limits disabled")
	}

	var sessions entitlements.StripeSessionClient
	var stripeClient *pkgstripe.Client
	if cfg.Stripe.Enabled() {
		stripeClient, err = pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap stripe", err)
			os.Exit(1)
		}
		sessions = entitlements.NewStripeClient(stripeClient)
	}

	subscriptionRepo := subscriptions.NewRepository(dbClient.DB())

	entitlementService, err := entitlements.NewService(entitlements.ServiceParams{
		Repo:              entitlements.NewRepository(dbClient.DB()),
		TransactionRunner: dbClient,
		Counter:           subscriptionRepo,
		Stripe:            sessions,
		Billing:           cfg.Billing,
		StripeConfig:      cfg.Stripe,
		PublicURL:         cfg.App.PublicURL,
		Logger:            logg,
	})
	requireService(logg, "entitlements", err)

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:              subscriptionRepo,
		TransactionRunner: dbClient,
		Limiter:           entitlementService,
		Logger:            logg,
	})
	requireService(logg, "subscriptions", err)

	dashboardService, err := dashboard.NewService(subscriptionService)
	requireService(logg, "dashboard", err)

	exportService, err := export.NewService(export.ServiceParams{
		Subscriptions: subscriptionService,
		Gate:          entitlementService,
	})
	requireService(logg, "export", err)

	deps.Subscriptions = subscriptionService
	deps.Emails = entitlementService
	deps.Dashboard = dashboardService
	deps.Exports = exportService
	deps.Plans = entitlementService

	if stripeClient != nil && redisClient != nil {
		webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
			Entitlements: entitlementService,
			Logger:       logg,
		})
		requireService(logg, "stripe webhook", err)
		guard, err := idempotency.NewGuard(redisClient, webhookGuardTTL, "stripe-webhook")
		requireService(logg, "stripe webhook guard", err)

		deps.WebhookService = webhookService
		deps.WebhookGuard = guard
		deps.StripeSecrets = stripeClient
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.HTTPMetrics = metrics.NewHTTPMetrics(registry)
	deps.MetricsGatherer = registry

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server stopped")
	}
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name+" service", err)
	os.Exit(1)
}
