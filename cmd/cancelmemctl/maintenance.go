package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cancelmem/cancelmem-backend/internal/cron"
	"github.com/cancelmem/cancelmem-backend/internal/export"
	"github.com/cancelmem/cancelmem-backend/internal/notifications"
	"github.com/cancelmem/cancelmem-backend/internal/reminders"
	"github.com/cancelmem/cancelmem-backend/pkg/pubsub"
	"github.com/cancelmem/cancelmem-backend/pkg/redis"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

func newRecomputeCmd(a *app) *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Rewrite stored cancel-by dates and proof statuses that drifted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			_, _, subs, err := a.services()
			if err != nil {
				return err
			}
			result, err := subs.RecomputeAll(cmd.Context(), batch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d repaired=%d invalid=%d\n", result.Scanned, result.Repaired, result.Invalid)
			return nil
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 200, "rows per page")
	return cmd
}

func newAuditCmd(a *app) *cobra.Command {
	var userID, subscriptionID string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Write the dispute packet CSV for one subscription to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			id, err := uuid.Parse(subscriptionID)
			if err != nil {
				return fmt.Errorf("invalid --subscription: %w", err)
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			_, _, subs, err := a.services()
			if err != nil {
				return err
			}
			sub, err := subs.Get(cmd.Context(), owner, id)
			if err != nil {
				return err
			}
			return export.WriteAuditCSV(cmd.OutOrStdout(), sub)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owner user id")
	cmd.Flags().StringVar(&subscriptionID, "subscription", "", "subscription id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("subscription")
	return cmd
}

// newRunOnceCmd runs one locked cron cycle. Reminders go to Pub/Sub when a GCP
// project is configured and to the log otherwise.
func newRunOnceCmd(a *app) *cobra.Command {
	var (
		asOf string
		jobs []string
	)
	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Run the recompute and reminder jobs once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			loc := a.cfg.Reminders.Location()
			now := time.Now
			if asOf != "" {
				d, err := types.ParseDate(asOf)
				if err != nil {
					return err
				}
				// Noon keeps the calendar day stable in every zone.
				fixed := d.Midnight(loc).Add(12 * time.Hour)
				now = func() time.Time { return fixed }
			}

			repo, plans, subs, err := a.services()
			if err != nil {
				return err
			}
			redisClient, err := redis.New(cmd.Context(), a.cfg.Redis, a.logg)
			if err != nil {
				return err
			}
			defer redisClient.Close()

			var notifier notifications.Notifier = notifications.NewLogNotifier(a.logg)
			if strings.TrimSpace(a.cfg.GCP.ProjectID) != "" {
				client, err := pubsub.NewClient(cmd.Context(), a.cfg.GCP, a.cfg.PubSub, pubsub.RolePublisher, a.logg)
				if err != nil {
					return err
				}
				defer client.Close()
				publisher, err := notifications.NewTopicPublisher(client.RemindersPublisher())
				if err != nil {
					return err
				}
				if notifier, err = notifications.NewPubSubNotifier(publisher); err != nil {
					return err
				}
			}

			dispatcher, err := reminders.NewDispatcher(reminders.DispatcherParams{
				Subscriptions: repo,
				Deliveries:    reminders.NewDeliveryRepository(a.db.DB()),
				Notifier:      notifier,
				Recipients:    plans,
				Logger:        a.logg,
				Now:           now,
			})
			if err != nil {
				return err
			}
			reminderJob, err := cron.NewReminderJob(cron.ReminderJobParams{
				Logger:     a.logg,
				Dispatcher: dispatcher,
				Location:   loc,
				Now:        now,
			})
			if err != nil {
				return err
			}
			recomputeJob, err := cron.NewRecomputeJob(cron.RecomputeJobParams{Logger: a.logg, Recomputer: subs})
			if err != nil {
				return err
			}
			registry, err := cron.NewRegistry(recomputeJob, reminderJob).Select(jobs...)
			if err != nil {
				return err
			}
			lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(a.cfg.App.Env)), a.cfg.Reminders.LockTTL)
			if err != nil {
				return err
			}
			service, err := cron.NewService(cron.ServiceParams{
				Logger:   a.logg,
				Registry: registry,
				Lock:     lock,
				Location: loc,
				Now:      now,
			})
			if err != nil {
				return err
			}
			return service.RunOnce(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "pretend today is this date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&jobs, "job", nil, "run only these jobs (recompute-derived, reminder-dispatch)")
	return cmd
}

// lockKey matches the cron worker so a manual run never overlaps a scheduled one.
func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
