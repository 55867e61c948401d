package subscriptions

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

// CreateInput captures a new subscription. Rule and reminders default from
// intent when omitted.
type CreateInput struct {
	Name               string                    `json:"name" validate:"required,max=200"`
	Amount             decimal.Decimal           `json:"amount"`
	Currency           string                    `json:"currency" validate:"omitempty,len=3,alpha"`
	RenewalDate        types.Date                `json:"renewal_date"`
	BillingPeriod      enums.BillingPeriod       `json:"billing_period" validate:"required"`
	Category           *enums.Category           `json:"category,omitempty"`
	Intent             enums.Intent              `json:"intent" validate:"required"`
	CancelByRule       *enums.CancelByRule       `json:"cancel_by_rule,omitempty"`
	CustomCancelByDate *types.Date               `json:"custom_cancel_by_date,omitempty"`
	CancelByNotes      *string                   `json:"cancel_by_notes,omitempty" validate:"omitempty,max=2000"`
	CancellationMethod *enums.CancellationMethod `json:"cancellation_method,omitempty"`
	CancellationURL    *string                   `json:"cancellation_url,omitempty" validate:"omitempty,url"`
	CancellationSteps  *string                   `json:"cancellation_steps,omitempty" validate:"omitempty,max=5000"`
	RequiredInfo       *string                   `json:"required_info,omitempty" validate:"omitempty,max=2000"`
	SupportContact     *string                   `json:"support_contact,omitempty" validate:"omitempty,max=500"`
	Reminders          *models.Reminders         `json:"reminders,omitempty"`
	Status             enums.SubscriptionStatus  `json:"status,omitempty"`
	TrialEndDate       *types.Date               `json:"trial_end_date,omitempty"`
	Notes              *string                   `json:"notes,omitempty" validate:"omitempty,max=5000"`
}

// UpdateInput is a partial update; nil fields are left untouched. Changing
// intent resets rule and reminders to the intent defaults unless they are
// supplied in the same request.
type UpdateInput struct {
	Name               *string                   `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Amount             *decimal.Decimal          `json:"amount,omitempty"`
	Currency           *string                   `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	RenewalDate        *types.Date               `json:"renewal_date,omitempty"`
	BillingPeriod      *enums.BillingPeriod      `json:"billing_period,omitempty"`
	Category           *enums.Category           `json:"category,omitempty"`
	Intent             *enums.Intent             `json:"intent,omitempty"`
	CancelByRule       *enums.CancelByRule       `json:"cancel_by_rule,omitempty"`
	CustomCancelByDate *types.Date               `json:"custom_cancel_by_date,omitempty"`
	CancelByNotes      *string                   `json:"cancel_by_notes,omitempty" validate:"omitempty,max=2000"`
	CancellationMethod *enums.CancellationMethod `json:"cancellation_method,omitempty"`
	CancellationURL    *string                   `json:"cancellation_url,omitempty" validate:"omitempty,url"`
	CancellationSteps  *string                   `json:"cancellation_steps,omitempty" validate:"omitempty,max=5000"`
	RequiredInfo       *string                   `json:"required_info,omitempty" validate:"omitempty,max=2000"`
	SupportContact     *string                   `json:"support_contact,omitempty" validate:"omitempty,max=500"`
	Reminders          *models.Reminders         `json:"reminders,omitempty"`
	TrialEndDate       *types.Date               `json:"trial_end_date,omitempty"`
	Notes              *string                   `json:"notes,omitempty" validate:"omitempty,max=5000"`
}

// ProofInput describes one proof document. Payload is base64 encoded.
type ProofInput struct {
	Name             string                  `json:"name" validate:"required,max=200"`
	Type             enums.ProofDocumentType `json:"type" validate:"required"`
	Payload          *string                 `json:"payload,omitempty"`
	Notes            *string                 `json:"notes,omitempty" validate:"omitempty,max=2000"`
	ConfirmationCode *string                 `json:"confirmation_code,omitempty" validate:"omitempty,max=200"`
}

// CancellationInput records a cancellation. Status must be cancelled or
// cancel-attempted; Date defaults to today.
type CancellationInput struct {
	Status enums.SubscriptionStatus `json:"status" validate:"required"`
	Date   *types.Date              `json:"date,omitempty"`
	Notes  *string                  `json:"notes,omitempty" validate:"omitempty,max=2000"`
	Proofs []ProofInput             `json:"proofs,omitempty" validate:"omitempty,max=20,dive"`
}

type ReactivateInput struct {
	Status       enums.SubscriptionStatus `json:"status" validate:"required"`
	RenewalDate  *types.Date              `json:"renewal_date,omitempty"`
	TrialEndDate *types.Date              `json:"trial_end_date,omitempty"`
	Notes        *string                  `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// TimelineInput is a user-logged history entry.
type TimelineInput struct {
	Type        enums.TimelineEventType `json:"type" validate:"required"`
	Description string                  `json:"description" validate:"required,max=500"`
	Notes       *string                 `json:"notes,omitempty" validate:"omitempty,max=2000"`
	ProofID     *uuid.UUID              `json:"proof_id,omitempty"`
}

// SortField orders list results.
type SortField string

const (
	SortCancelBy SortField = "cancel_by"
	SortRenewal  SortField = "renewal"
	SortName     SortField = "name"
	SortMonthly  SortField = "monthly"
	SortCreated  SortField = "created"
)

// ListParams filters a user's subscriptions.
type ListParams struct {
	Status   *enums.SubscriptionStatus
	Intent   *enums.Intent
	Category *enums.Category
	Search   string
	Sort     SortField
	Desc     bool
}
