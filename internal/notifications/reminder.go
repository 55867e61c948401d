// Package notifications delivers due cancel-by reminders: the cron worker
// publishes them, the notification worker turns them into emails.
package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

// Reminder is the message published for one due reminder. ID is stable for a
// (subscription, cancel-by date, offset) triple.
type Reminder struct {
	ID              string       `json:"id"`
	UserID          uuid.UUID    `json:"user_id"`
	Email           string       `json:"email,omitempty"`
	SubscriptionID  uuid.UUID    `json:"subscription_id"`
	Name            string       `json:"name"`
	Amount          string       `json:"amount"`
	Currency        string       `json:"currency"`
	Intent          enums.Intent `json:"intent"`
	RenewalDate     types.Date   `json:"renewal_date"`
	CancelByDate    types.Date   `json:"cancel_by_date"`
	DaysUntil       int          `json:"days_until"`
	CancellationURL string       `json:"cancellation_url,omitempty"`
}

// NewReminder snapshots the subscription fields a reminder email needs.
func NewReminder(sub *models.Subscription, daysUntil int, email string) Reminder {
	r := Reminder{
		ID:             ReminderID(sub.ID, sub.CancelByDate, daysUntil),
		UserID:         sub.UserID,
		Email:          email,
		SubscriptionID: sub.ID,
		Name:           sub.Name,
		Amount:         sub.Amount.StringFixed(2),
		Currency:       sub.Currency,
		Intent:         sub.Intent,
		RenewalDate:    sub.RenewalDate,
		CancelByDate:   sub.CancelByDate,
		DaysUntil:      daysUntil,
	}
	if sub.CancellationURL != nil {
		r.CancellationURL = *sub.CancellationURL
	}
	return r
}

func ReminderID(subscriptionID uuid.UUID, cancelBy types.Date, daysUntil int) string {
	return fmt.Sprintf("%s:%s:%d", subscriptionID, cancelBy, daysUntil)
}

// Notifier hands a reminder off for delivery. It returns once the reminder
// is accepted, not once it is delivered.
type Notifier interface {
	Notify(ctx context.Context, reminder Reminder) (string, error)
}

// LogNotifier writes reminders to the log. Used when Pub/Sub is not configured.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	return &LogNotifier{logg: logg}
}

func (n *LogNotifier) Notify(ctx context.Context, reminder Reminder) (string, error) {
	if n.logg != nil {
		logCtx := n.logg.WithFields(ctx, map[string]any{
			"reminder_id":     reminder.ID,
			"subscription_id": reminder.SubscriptionID.String(),
			"cancel_by_date":  reminder.CancelByDate.String(),
			"days_until":      reminder.DaysUntil,
		})
		n.logg.Info(logCtx, subject(reminder))
	}
	return reminder.ID, nil
}
