package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

// Subscription is one tracked recurring (or one-time) charge owned by a user.
// CancelByDate and ProofStatus are derived; only subscriptions.Recompute sets them.
type Subscription struct {
	ID                 uuid.UUID                `gorm:"type:uuid;primaryKey"`
	UserID             uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	Name               string                   `gorm:"column:name;type:text;not null"`
	Amount             decimal.Decimal          `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency           string                   `gorm:"column:currency;type:varchar(3);not null"`
	RenewalDate        types.Date               `gorm:"column:renewal_date;not null"`
	BillingPeriod      enums.BillingPeriod      `gorm:"column:billing_period;type:text;not null"`
	Category           *enums.Category          `gorm:"column:category;type:text"`
	Intent             enums.Intent             `gorm:"column:intent;type:text;not null"`
	CancelByRule       enums.CancelByRule       `gorm:"column:cancel_by_rule;type:text;not null"`
	CustomCancelByDate *types.Date              `gorm:"column:custom_cancel_by_date"`
	CancelByDate       types.Date               `gorm:"column:cancel_by_date;not null"`
	CancelByNotes      *string                  `gorm:"column:cancel_by_notes;type:text"`
	CancellationMethod enums.CancellationMethod `gorm:"column:cancellation_method;type:text;not null"`
	CancellationURL    *string                  `gorm:"column:cancellation_url;type:text"`
	CancellationSteps  *string                  `gorm:"column:cancellation_steps;type:text"`
	RequiredInfo       *string                  `gorm:"column:required_info;type:text"`
	SupportContact     *string                  `gorm:"column:support_contact;type:text"`
	Reminders          Reminders                `gorm:"embedded;embeddedPrefix:remind_"`
	Status             enums.SubscriptionStatus `gorm:"column:status;type:text;not null"`
	ProofStatus        enums.ProofStatus        `gorm:"column:proof_status;type:text;not null"`
	TrialEndDate       *types.Date              `gorm:"column:trial_end_date"`
	CancellationDate   *types.Date              `gorm:"column:cancellation_date"`
	CancelAttemptDate  *types.Date              `gorm:"column:cancel_attempt_date"`
	Notes              *string                  `gorm:"column:notes;type:text"`
	CreatedAt          time.Time                `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;not null;autoUpdateTime:false"`

	ProofDocuments []ProofDocument `gorm:"foreignKey:SubscriptionID;constraint:OnDelete:CASCADE"`
	Timeline       []TimelineEvent `gorm:"foreignKey:SubscriptionID;constraint:OnDelete:CASCADE"`
}

// Reminders holds the four independent reminder toggles.
type Reminders struct {
	SevenDays bool `gorm:"column:seven_days;not null;default:false" json:"seven_days"`
	ThreeDays bool `gorm:"column:three_days;not null;default:false" json:"three_days"`
	OneDay    bool `gorm:"column:one_day;not null;default:false" json:"one_day"`
	DayOf     bool `gorm:"column:day_of;not null;default:false" json:"day_of"`
}

// Any reports whether at least one reminder is enabled.
func (r Reminders) Any() bool {
	return r.SevenDays || r.ThreeDays || r.OneDay || r.DayOf
}

// Enabled reports whether the reminder for the given day offset is on.
func (r Reminders) Enabled(daysBefore int) bool {
	switch daysBefore {
	case 7:
		return r.SevenDays
	case 3:
		return r.ThreeDays
	case 1:
		return r.OneDay
	case 0:
		return r.DayOf
	default:
		return false
	}
}
