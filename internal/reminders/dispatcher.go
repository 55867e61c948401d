package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/cancelmem/cancelmem-backend/internal/notifications"
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
	"github.com/cancelmem/cancelmem-backend/pkg/metrics"
	"github.com/cancelmem/cancelmem-backend/pkg/pagination"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

type candidateLister interface {
	ListReminderCandidates(ctx context.Context, from, to types.Date, cursor *pagination.Cursor, limit int) ([]models.Subscription, error)
}

type recipientLookup interface {
	EmailFor(ctx context.Context, userID uuid.UUID) (string, error)
}

// DispatcherParams wires the reminder dispatcher.
type DispatcherParams struct {
	Subscriptions candidateLister
	Deliveries    DeliveryRepository
	Notifier      notifications.Notifier
	Recipients    recipientLookup
	Logger        *logger.Logger
	Metrics       *metrics.ReminderMetrics
	BatchSize     int
	Now           func() time.Time
}

// Dispatcher publishes due reminders and records each delivery.
type Dispatcher struct {
	subs       candidateLister
	deliveries DeliveryRepository
	notifier   notifications.Notifier
	recipients recipientLookup
	logg       *logger.Logger
	metrics    *metrics.ReminderMetrics
	batch      int
	now        func() time.Time
}

// Result summarizes one dispatch run.
type Result struct {
	Scanned     int
	Sent        int
	AlreadySent int
	Failed      int
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Subscriptions == nil {
		return nil, errors.New("subscription lister required")
	}
	if params.Deliveries == nil {
		return nil, errors.New("delivery repository required")
	}
	if params.Notifier == nil {
		return nil, errors.New("notifier required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Dispatcher{
		subs:       params.Subscriptions,
		deliveries: params.Deliveries,
		notifier:   params.Notifier,
		recipients: params.Recipients,
		logg:       params.Logger,
		metrics:    params.Metrics,
		batch:      pagination.NormalizeBatch(params.BatchSize),
		now:        now,
	}, nil
}

// Dispatch sends every reminder due on asOf's calendar day. A failure on one
// subscription never stops the others; all failures are returned together.
func (d *Dispatcher) Dispatch(ctx context.Context, asOf time.Time) (Result, error) {
	var (
		result Result
		errs   error
		emails = map[uuid.UUID]string{}
	)
	from := types.DateOf(asOf)
	to := from.AddDays(Horizon)

	fetch := func(ctx context.Context, after *pagination.Cursor, limit int) ([]models.Subscription, error) {
		return d.subs.ListReminderCandidates(ctx, from, to, after, limit)
	}
	err := pagination.Walk(ctx, d.batch, fetch, candidateCursor, func(sub *models.Subscription) {
		result.Scanned++
		offset, due := Due(sub, asOf)
		if !due {
			return
		}
		sent, err := d.deliver(ctx, sub, offset, emails)
		switch {
		case err != nil:
			result.Failed++
			d.metrics.IncDispatchFailure()
			errs = multierr.Append(errs, fmt.Errorf("subscription %s: %w", sub.ID, err))
		case sent:
			result.Sent++
			d.metrics.IncPublished(offset)
		default:
			result.AlreadySent++
		}
	})
	if err != nil {
		return result, multierr.Append(errs, fmt.Errorf("list reminder candidates: %w", err))
	}

	logCtx := d.logg.WithFields(ctx, map[string]any{
		"as_of":        from.String(),
		"scanned":      result.Scanned,
		"sent":         result.Sent,
		"already_sent": result.AlreadySent,
		"failed":       result.Failed,
	})
	d.logg.Info(logCtx, "reminder dispatch finished")
	return result, errs
}

func (d *Dispatcher) deliver(ctx context.Context, sub *models.Subscription, offset int, emails map[uuid.UUID]string) (bool, error) {
	exists, err := d.deliveries.Exists(ctx, sub.ID, sub.CancelByDate, offset)
	if err != nil {
		return false, fmt.Errorf("check delivery: %w", err)
	}
	if exists {
		return false, nil
	}

	email, err := d.recipient(ctx, sub.UserID, emails)
	if err != nil {
		return false, err
	}

	messageID, err := d.notifier.Notify(ctx, notifications.NewReminder(sub, offset, email))
	if err != nil {
		return false, err
	}

	delivery := &models.ReminderDelivery{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		CancelByDate:   sub.CancelByDate,
		OffsetDays:     offset,
		DeliveredAt:    d.now(),
	}
	if messageID != "" {
		delivery.MessageID = &messageID
	}
	if err := d.deliveries.Record(ctx, delivery); err != nil {
		if errors.Is(err, ErrAlreadyDelivered) {
			return false, nil
		}
		return false, fmt.Errorf("record delivery: %w", err)
	}
	return true, nil
}

func (d *Dispatcher) recipient(ctx context.Context, userID uuid.UUID, cache map[uuid.UUID]string) (string, error) {
	if d.recipients == nil {
		return "", nil
	}
	if email, ok := cache[userID]; ok {
		return email, nil
	}
	email, err := d.recipients.EmailFor(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("lookup recipient: %w", err)
	}
	cache[userID] = email
	return email, nil
}

func candidateCursor(sub *models.Subscription) pagination.Cursor {
	return pagination.Cursor{CreatedAt: sub.CreatedAt, ID: sub.ID}
}
