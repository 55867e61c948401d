package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cancelmem/cancelmem-backend/pkg/enums"
)

// TimelineEvent is an immutable history entry. Sequence orders events within
// a subscription.
type TimelineEvent struct {
	ID              uuid.UUID               `gorm:"type:uuid;primaryKey"`
	SubscriptionID  uuid.UUID               `gorm:"column:subscription_id;type:uuid;not null;uniqueIndex:ux_timeline_events_sequence,priority:1"`
	Type            enums.TimelineEventType `gorm:"column:type;type:text;not null"`
	OccurredAt      time.Time               `gorm:"column:occurred_at;not null"`
	Description     string                  `gorm:"column:description;type:text;not null"`
	Notes           *string                 `gorm:"column:notes;type:text"`
	ProofDocumentID *uuid.UUID              `gorm:"column:proof_document_id;type:uuid"`
	Sequence        int                     `gorm:"column:sequence;not null;uniqueIndex:ux_timeline_events_sequence,priority:2"`
}
