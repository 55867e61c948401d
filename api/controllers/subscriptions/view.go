package subscriptions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cancelmem/cancelmem-backend/internal/deadline"
	"github.com/cancelmem/cancelmem-backend/internal/proof"
	"github.com/cancelmem/cancelmem-backend/internal/reporting"
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

type proofResponse struct {
	ID               uuid.UUID               `json:"id"`
	Name             string                  `json:"name"`
	Type             enums.ProofDocumentType `json:"type"`
	RecordedAt       time.Time               `json:"recorded_at"`
	MimeType         *string                 `json:"mime_type,omitempty"`
	Payload          *string                 `json:"payload,omitempty"`
	Notes            *string                 `json:"notes,omitempty"`
	ConfirmationCode *string                 `json:"confirmation_code,omitempty"`
}

type timelineResponse struct {
	ID              uuid.UUID               `json:"id"`
	Type            enums.TimelineEventType `json:"type"`
	OccurredAt      time.Time               `json:"occurred_at"`
	Description     string                  `json:"description"`
	Notes           *string                 `json:"notes,omitempty"`
	ProofDocumentID *uuid.UUID              `json:"proof_document_id,omitempty"`
}

type subscriptionResponse struct {
	ID                 uuid.UUID                `json:"id"`
	Name               string                   `json:"name"`
	Amount             decimal.Decimal          `json:"amount"`
	Currency           string                   `json:"currency"`
	MonthlyEquivalent  decimal.Decimal          `json:"monthly_equivalent"`
	RenewalDate        types.Date               `json:"renewal_date"`
	BillingPeriod      enums.BillingPeriod      `json:"billing_period"`
	Category           *enums.Category          `json:"category,omitempty"`
	Intent             enums.Intent             `json:"intent"`
	CancelByRule       enums.CancelByRule       `json:"cancel_by_rule"`
	CustomCancelByDate *types.Date              `json:"custom_cancel_by_date,omitempty"`
	CancelByDate       types.Date               `json:"cancel_by_date"`
	DaysUntilCancelBy  int                      `json:"days_until_cancel_by"`
	HasDeadline        bool                     `json:"has_deadline"`
	CancelByNotes      *string                  `json:"cancel_by_notes,omitempty"`
	CancellationMethod enums.CancellationMethod `json:"cancellation_method"`
	CancellationURL    *string                  `json:"cancellation_url,omitempty"`
	CancellationSteps  *string                  `json:"cancellation_steps,omitempty"`
	RequiredInfo       *string                  `json:"required_info,omitempty"`
	SupportContact     *string                  `json:"support_contact,omitempty"`
	Reminders          models.Reminders         `json:"reminders"`
	Status             enums.SubscriptionStatus `json:"status"`
	ProofStatus        enums.ProofStatus        `json:"proof_status"`
	NeedsProof         bool                     `json:"needs_proof"`
	TrialEndDate       *types.Date              `json:"trial_end_date,omitempty"`
	CancellationDate   *types.Date              `json:"cancellation_date,omitempty"`
	CancelAttemptDate  *types.Date              `json:"cancel_attempt_date,omitempty"`
	Notes              *string                  `json:"notes,omitempty"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
	ProofDocuments     []proofResponse          `json:"proof_documents,omitempty"`
	Timeline           []timelineResponse       `json:"timeline,omitempty"`
}

type subscriptionListResponse struct {
	Subscriptions []subscriptionResponse `json:"subscriptions"`
	Count         int                    `json:"count"`
}

// toResponse maps a stored subscription. The anytime sentinel date is passed
// through as stored, with has_deadline false. Detail views carry proof
// payloads and the timeline.
func toResponse(sub *models.Subscription, asOf time.Time, detail bool) subscriptionResponse {
	resp := subscriptionResponse{
		ID:                 sub.ID,
		Name:               sub.Name,
		Amount:             sub.Amount,
		Currency:           sub.Currency,
		MonthlyEquivalent:  reporting.MonthlyEquivalent(sub.Amount, sub.BillingPeriod),
		RenewalDate:        sub.RenewalDate,
		BillingPeriod:      sub.BillingPeriod,
		Category:           sub.Category,
		Intent:             sub.Intent,
		CancelByRule:       sub.CancelByRule,
		CustomCancelByDate: sub.CustomCancelByDate,
		CancelByDate:       sub.CancelByDate,
		DaysUntilCancelBy:  deadline.DaysUntil(sub.CancelByDate, asOf),
		HasDeadline:        deadline.HasDeadline(sub.CancelByDate),
		CancelByNotes:      sub.CancelByNotes,
		CancellationMethod: sub.CancellationMethod,
		CancellationURL:    sub.CancellationURL,
		CancellationSteps:  sub.CancellationSteps,
		RequiredInfo:       sub.RequiredInfo,
		SupportContact:     sub.SupportContact,
		Reminders:          sub.Reminders,
		Status:             sub.Status,
		ProofStatus:        sub.ProofStatus,
		NeedsProof:         proof.NeedsAttention(sub.Status, sub.ProofStatus),
		TrialEndDate:       sub.TrialEndDate,
		CancellationDate:   sub.CancellationDate,
		CancelAttemptDate:  sub.CancelAttemptDate,
		Notes:              sub.Notes,
		CreatedAt:          sub.CreatedAt,
		UpdatedAt:          sub.UpdatedAt,
	}
	for _, doc := range sub.ProofDocuments {
		view := proofResponse{
			ID:               doc.ID,
			Name:             doc.Name,
			Type:             doc.Type,
			RecordedAt:       doc.RecordedAt,
			MimeType:         doc.MimeType,
			Notes:            doc.Notes,
			ConfirmationCode: doc.ConfirmationCode,
		}
		if detail {
			view.Payload = doc.Payload
		}
		resp.ProofDocuments = append(resp.ProofDocuments, view)
	}
	if detail {
		for _, ev := range sub.Timeline {
			resp.Timeline = append(resp.Timeline, timelineResponse{
				ID:              ev.ID,
				Type:            ev.Type,
				OccurredAt:      ev.OccurredAt,
				Description:     ev.Description,
				Notes:           ev.Notes,
				ProofDocumentID: ev.ProofDocumentID,
			})
		}
	}
	return resp
}
