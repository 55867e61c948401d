package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cancelmem/cancelmem-backend/internal/entitlements"
	"github.com/cancelmem/cancelmem-backend/internal/subscriptions"
	"github.com/cancelmem/cancelmem-backend/pkg/config"
	"github.com/cancelmem/cancelmem-backend/pkg/db"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
	"github.com/cancelmem/cancelmem-backend/pkg/migrate"
)

// app holds lazily opened resources. Commands that only run pure deadline
// math never touch the database.
type app struct {
	cfg  *config.Config
	logg *logger.Logger
	db   *db.Client
}

func newApp() *app {
	return &app{logg: logger.New(logger.Options{ServiceName: "cancelmemctl", Format: logger.FormatConsole})}
}

func (a *app) open(ctx context.Context) error {
	if a.db != nil {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	a.logg = logger.New(logger.Options{
		ServiceName: "cancelmemctl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      logger.FormatConsole,
		Env:         cfg.App.Env,
	})

	client, err := db.New(ctx, cfg.DB, a.logg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := migrate.MaybeRunDev(ctx, cfg, a.logg, client); err != nil {
		_ = client.Close()
		return fmt.Errorf("dev migrations: %w", err)
	}
	a.db = client
	return nil
}

func (a *app) close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logg.Error(context.Background(), "error closing database", err)
	}
}

func (a *app) services() (subscriptions.Repository, entitlements.Service, subscriptions.Service, error) {
	repo := subscriptions.NewRepository(a.db.DB())
	plans, err := entitlements.NewService(entitlements.ServiceParams{
		Repo:              entitlements.NewRepository(a.db.DB()),
		TransactionRunner: a.db,
		Counter:           repo,
		Billing:           a.cfg.Billing,
		StripeConfig:      a.cfg.Stripe,
		PublicURL:         a.cfg.App.PublicURL,
		Logger:            a.logg,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	subs, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:              repo,
		TransactionRunner: a.db,
		Limiter:           plans,
		Logger:            a.logg,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return repo, plans, subs, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "cancelmemctl",
		Short:         "Operate the CancelMem backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.AddCommand(
		newPreviewCmd(),
		newRecomputeCmd(a),
		newAuditCmd(a),
		newRunOnceCmd(a),
	)
	return root
}
