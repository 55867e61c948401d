package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cancelmem/cancelmem-backend/pkg/enums"
)

// ProofDocument is one piece of cancellation evidence. Payload carries
// base64 content for screenshots, emails and PDFs.
type ProofDocument struct {
	ID               uuid.UUID               `gorm:"type:uuid;primaryKey"`
	SubscriptionID   uuid.UUID               `gorm:"column:subscription_id;type:uuid;not null;index"`
	Name             string                  `gorm:"column:name;type:text;not null"`
	Type             enums.ProofDocumentType `gorm:"column:type;type:text;not null"`
	RecordedAt       time.Time               `gorm:"column:recorded_at;not null"`
	Payload          *string                 `gorm:"column:payload;type:text"`
	MimeType         *string                 `gorm:"column:mime_type;type:text"`
	Notes            *string                 `gorm:"column:notes;type:text"`
	ConfirmationCode *string                 `gorm:"column:confirmation_code;type:text"`
	Position         int                     `gorm:"column:position;not null;default:0"`
}
