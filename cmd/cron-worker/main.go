package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cancelmem/cancelmem-backend/internal/cron"
	"github.com/cancelmem/cancelmem-backend/internal/entitlements"
	"github.com/cancelmem/cancelmem-backend/internal/notifications"
	"github.com/cancelmem/cancelmem-backend/internal/reminders"
	"github.com/cancelmem/cancelmem-backend/internal/subscriptions"
	"github.com/cancelmem/cancelmem-backend/pkg/config"
	"github.com/cancelmem/cancelmem-backend/pkg/db"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
	"github.com/cancelmem/cancelmem-backend/pkg/metrics"
	"github.com/cancelmem/cancelmem-backend/pkg/migrate"
	"github.com/cancelmem/cancelmem-backend/pkg/pubsub"
	"github.com/cancelmem/cancelmem-backend/pkg/redis"
)

const lockKeyFormat = "cron-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	notifier, closeNotifier, err := buildNotifier(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reminder notifier", err)
		os.Exit(1)
	}
	defer closeNotifier()

	registry := prometheus.NewRegistry()
	cronMetrics := metrics.NewCronJobMetrics(registry)
	reminderMetrics := metrics.NewReminderMetrics(registry)

	subscriptionRepo := subscriptions.NewRepository(dbClient.DB())
	entitlementService, err := entitlements.NewService(entitlements.ServiceParams{
		Repo:              entitlements.NewRepository(dbClient.DB()),
		TransactionRunner: dbClient,
		Counter:           subscriptionRepo,
		Billing:           cfg.Billing,
		StripeConfig:      cfg.Stripe,
		PublicURL:         cfg.App.PublicURL,
		Logger:            logg,
	})
	exitOnErr(logg, "failed to create entitlements service", err)

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:              subscriptionRepo,
		TransactionRunner: dbClient,
		Limiter:           entitlementService,
		Logger:            logg,
	})
	exitOnErr(logg, "failed to create subscriptions service", err)

	dispatcher, err := reminders.NewDispatcher(reminders.DispatcherParams{
		Subscriptions: subscriptionRepo,
		Deliveries:    reminders.NewDeliveryRepository(dbClient.DB()),
		Notifier:      notifier,
		Recipients:    entitlementService,
		Logger:        logg,
		Metrics:       reminderMetrics,
	})
	exitOnErr(logg, "failed to create reminder dispatcher", err)

	reminderJob, err := cron.NewReminderJob(cron.ReminderJobParams{
		Logger:     logg,
		Dispatcher: dispatcher,
		Location:   cfg.Reminders.Location(),
	})
	exitOnErr(logg, "failed to create reminder job", err)

	recomputeJob, err := cron.NewRecomputeJob(cron.RecomputeJobParams{
		Logger:     logg,
		Recomputer: subscriptionService,
	})
	exitOnErr(logg, "failed to create recompute job", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), cfg.Reminders.LockTTL)
	exitOnErr(logg, "failed to create cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(recomputeJob, reminderJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Schedule: cfg.Reminders.Schedule,
		Location: cfg.Reminders.Location(),
		Interval: cfg.Reminders.Interval,
	})
	exitOnErr(logg, "failed to create cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"schedule":    cfg.Reminders.Schedule,
		"timezone":    cfg.Reminders.Timezone,
	})
	logg.Info(ctx, "starting cron worker")

	go serveMetrics(ctx, logg, ":"+cfg.App.Port, registry)

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// buildNotifier publishes to Pub/Sub when a GCP project is configured and
// falls back to logging reminders otherwise.
func buildNotifier(ctx context.Context, cfg *config.Config, logg *logger.Logger) (notifications.Notifier, func(), error) {
	if strings.TrimSpace(cfg.GCP.ProjectID) == "" {
		logg.Warn(ctx, "gcp project not configured; reminders will only be logged")
		return notifications.NewLogNotifier(logg), func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.RolePublisher, logg)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap pubsub: %w", err)
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}
	publisher, err := notifications.NewTopicPublisher(client.RemindersPublisher())
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	notifier, err := notifications.NewPubSubNotifier(publisher)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return notifier, closeFn, nil
}

func serveMetrics(ctx context.Context, logg *logger.Logger, addr string, gatherer prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics listener stopped", err)
	}
}

func exitOnErr(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
