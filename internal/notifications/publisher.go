package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	pubsub "cloud.google.com/go/pubsub/v2"
)

const (
	attrEventType = "event_type"
	attrReminder  = "reminder_id"
	attrDaysUntil = "days_until"

	eventReminderDue = "reminder.due"
)

// MessagePublisher publishes one message and waits for the server id.
type MessagePublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) (string, error)
}

// TopicPublisher adapts a Pub/Sub v2 publisher to MessagePublisher.
type TopicPublisher struct {
	publisher *pubsub.Publisher
}

func NewTopicPublisher(publisher *pubsub.Publisher) (*TopicPublisher, error) {
	if publisher == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return &TopicPublisher{publisher: publisher}, nil
}

func (p *TopicPublisher) Publish(ctx context.Context, msg *pubsub.Message) (string, error) {
	return p.publisher.Publish(ctx, msg).Get(ctx)
}

// PubSubNotifier publishes reminders as JSON to the reminders topic.
type PubSubNotifier struct {
	publisher MessagePublisher
}

func NewPubSubNotifier(publisher MessagePublisher) (*PubSubNotifier, error) {
	if publisher == nil {
		return nil, errors.New("message publisher required")
	}
	return &PubSubNotifier{publisher: publisher}, nil
}

func (n *PubSubNotifier) Notify(ctx context.Context, reminder Reminder) (string, error) {
	data, err := json.Marshal(reminder)
	if err != nil {
		return "", fmt.Errorf("encode reminder: %w", err)
	}
	id, err := n.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			attrEventType: eventReminderDue,
			attrReminder:  reminder.ID,
			attrDaysUntil: strconv.Itoa(reminder.DaysUntil),
		},
	})
	if err != nil {
		return "", fmt.Errorf("publish reminder %s: %w", reminder.ID, err)
	}
	return id, nil
}
