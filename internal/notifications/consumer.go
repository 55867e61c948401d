package notifications

import (
	"context"
	"encoding/json"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/cancelmem/cancelmem-backend/pkg/logger"
	"github.com/cancelmem/cancelmem-backend/pkg/metrics"
)

type deliveryGuard interface {
	CheckAndMark(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// ConsumerParams wires the reminder email consumer.
type ConsumerParams struct {
	Subscription *pubsub.Subscriber
	Sender       EmailSender
	Guard        deliveryGuard
	Logger       *logger.Logger
	Metrics      *metrics.ReminderMetrics
}

// Consumer drains the reminders subscription and emails each reminder once.
type Consumer struct {
	subscription *pubsub.Subscriber
	sender       EmailSender
	guard        deliveryGuard
	logg         *logger.Logger
	metrics      *metrics.ReminderMetrics
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Sender == nil {
		return nil, errors.New("email sender required")
	}
	if params.Guard == nil {
		return nil, errors.New("delivery guard required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Consumer{
		subscription: params.Subscription,
		sender:       params.Sender,
		guard:        params.Guard,
		logg:         params.Logger,
		metrics:      params.Metrics,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return errors.New("reminders subscription required")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Data, msg.Attributes).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, messageID string, data []byte, attrs map[string]string) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": attrs[attrEventType],
	})
	if attrs[attrEventType] != eventReminderDue {
		c.logg.Info(logCtx, "skipping unknown event")
		return processResult{ack: true}
	}

	var reminder Reminder
	if err := json.Unmarshal(data, &reminder); err != nil {
		c.logg.Error(logCtx, "failed to decode reminder", err)
		c.metrics.IncEmail(metrics.OutcomeDropped)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"reminder_id":     reminder.ID,
		"subscription_id": reminder.SubscriptionID.String(),
		"user_id":         reminder.UserID.String(),
	})
	if reminder.ID == "" || reminder.Email == "" {
		c.logg.Warn(logCtx, "reminder has no id or recipient; dropping")
		c.metrics.IncEmail(metrics.OutcomeDropped)
		return processResult{ack: true}
	}

	seen, err := c.guard.CheckAndMark(ctx, reminder.ID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if seen {
		c.logg.Info(logCtx, "reminder already emailed")
		return processResult{ack: true}
	}

	providerID, err := c.sender.Send(ctx, RenderEmail(reminder))
	if err != nil {
		if IsPermanent(err) {
			c.logg.Error(logCtx, "reminder email rejected", err)
			c.metrics.IncEmail(metrics.OutcomeDropped)
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "reminder email failed; will retry", err)
		c.metrics.IncEmail(metrics.OutcomeRetried)
		if delErr := c.guard.Delete(ctx, reminder.ID); delErr != nil {
			c.logg.Error(logCtx, "failed to clear idempotency key", delErr)
		}
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithField(logCtx, "provider_id", providerID), "reminder emailed")
	c.metrics.IncEmail(metrics.OutcomeSent)
	return processResult{ack: true}
}
