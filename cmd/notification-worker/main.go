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

	"github.com/cancelmem/cancelmem-backend/internal/notifications"
	"github.com/cancelmem/cancelmem-backend/pkg/config"
	"github.com/cancelmem/cancelmem-backend/pkg/idempotency"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
	"github.com/cancelmem/cancelmem-backend/pkg/metrics"
	"github.com/cancelmem/cancelmem-backend/pkg/pubsub"
	"github.com/cancelmem/cancelmem-backend/pkg/redis"
)

const deliveryGuardTTL = 7 * 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "notification-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "notification-worker"

	logg = logger.New(logger.Options{
		ServiceName: "notification-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Env:         cfg.App.Env,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	exitOnErr(logg, "failed to bootstrap redis", err)
	defer redisClient.Close()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.RoleConsumer, logg)
	exitOnErr(logg, "failed to bootstrap pubsub", err)
	defer pubsubClient.Close()

	sender, err := notifications.NewResendSender(notifications.ResendParams{
		Config: cfg.Email,
		Logger: logg,
	})
	exitOnErr(logg, "failed to create email sender", err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	guard, err := idempotency.NewGuard(redisClient, deliveryGuardTTL, "reminder-email")
	exitOnErr(logg, "failed to create delivery guard", err)

	consumer, err := notifications.NewConsumer(notifications.ConsumerParams{
		Subscription: pubsubClient.RemindersSubscription(),
		Sender:       sender,
		Guard:        guard,
		Logger:       logg,
		Metrics:      metrics.NewReminderMetrics(registry),
	})
	exitOnErr(logg, "failed to create notification consumer", err)

	service, err := NewService(ServiceParams{
		Logger: logg,
		Dependencies: []Dependency{
			{Name: "redis", Pinger: redisClient},
			{Name: "pubsub", Pinger: pubsubClient},
		},
		Consumer: consumer,
		Gatherer: registry,
	})
	exitOnErr(logg, "failed to create worker service", err)

	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"serviceKind":  cfg.Service.Kind,
		"subscription": cfg.PubSub.RemindersSubscription,
	})
	logg.Info(ctx, "starting notification worker")

	server := &http.Server{Addr: ":" + cfg.App.Port, Handler: service.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "health listener stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := service.Run(ctx); err != nil {
		logg.Error(ctx, "notification worker stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "notification worker shutting down gracefully")
}

func exitOnErr(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
