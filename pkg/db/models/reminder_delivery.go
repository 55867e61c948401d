package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

// ReminderDelivery records that a reminder for a given deadline and offset
// was already sent, so the dispatch job never repeats it.
type ReminderDelivery struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	SubscriptionID uuid.UUID  `gorm:"column:subscription_id;type:uuid;not null;uniqueIndex:ux_reminder_deliveries_once,priority:1"`
	UserID         uuid.UUID  `gorm:"column:user_id;type:uuid;not null"`
	CancelByDate   types.Date `gorm:"column:cancel_by_date;not null;uniqueIndex:ux_reminder_deliveries_once,priority:2"`
	OffsetDays     int        `gorm:"column:offset_days;not null;uniqueIndex:ux_reminder_deliveries_once,priority:3"`
	MessageID      *string    `gorm:"column:message_id;type:text"`
	DeliveredAt    time.Time  `gorm:"column:delivered_at;not null"`
}
