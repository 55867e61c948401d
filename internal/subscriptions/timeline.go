package subscriptions

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

// timelineBuilder collects events for one mutation so they are persisted in
// the same transaction as the subscription row.
type timelineBuilder struct {
	sub     *models.Subscription
	now     time.Time
	pending []models.TimelineEvent
}

func newTimeline(sub *models.Subscription, now time.Time) *timelineBuilder {
	return &timelineBuilder{sub: sub, now: now}
}

func (b *timelineBuilder) add(eventType enums.TimelineEventType, description string, notes *string, proofID *uuid.UUID) {
	event := models.TimelineEvent{
		ID:              uuid.New(),
		SubscriptionID:  b.sub.ID,
		Type:            eventType,
		OccurredAt:      b.now,
		Description:     description,
		Notes:           notes,
		ProofDocumentID: proofID,
		Sequence:        len(b.sub.Timeline) + len(b.pending),
	}
	b.pending = append(b.pending, event)
}

// flush appends pending events onto the in-memory subscription and returns
// them for persistence.
func (b *timelineBuilder) flush() []models.TimelineEvent {
	out := b.pending
	b.sub.Timeline = append(b.sub.Timeline, out...)
	b.pending = nil
	return out
}

func (b *timelineBuilder) empty() bool {
	return len(b.pending) == 0
}

func describeReminders(r models.Reminders) string {
	if !r.Any() {
		return "Reminders turned off"
	}
	parts := []string{}
	if r.SevenDays {
		parts = append(parts, "7 days before")
	}
	if r.ThreeDays {
		parts = append(parts, "3 days before")
	}
	if r.OneDay {
		parts = append(parts, "1 day before")
	}
	if r.DayOf {
		parts = append(parts, "on the day")
	}
	return fmt.Sprintf("Reminders set: %s", joinList(parts))
}

func describeDateChange(label string, from, to *types.Date) string {
	switch {
	case from == nil && to != nil:
		return fmt.Sprintf("%s set to %s", label, to)
	case from != nil && to == nil:
		return fmt.Sprintf("%s cleared (was %s)", label, from)
	default:
		return fmt.Sprintf("%s changed from %s to %s", label, from, to)
	}
}

func joinList(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	out := ""
	for i, p := range parts {
		switch {
		case i == 0:
			out = p
		case i == len(parts)-1:
			out += " and " + p
		default:
			out += ", " + p
		}
	}
	return out
}
