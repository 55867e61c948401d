package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cancelmem/cancelmem-backend/internal/deadline"
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

var subscriptionColumns = []string{
	"id",
	"name",
	"amount",
	"currency",
	"billing_period",
	"monthly_equivalent",
	"category",
	"status",
	"intent",
	"renewal_date",
	"cancel_by_rule",
	"cancel_by_date",
	"proof_status",
	"cancellation_method",
	"cancellation_url",
	"trial_end_date",
	"cancellation_date",
	"cancel_attempt_date",
	"notes",
}

// WriteCSV writes one row per subscription. Cancel-by date and proof status
// are the stored values and monthly holds the precomputed monthly
// equivalents keyed by subscription ID; rule "anytime" exports an empty
// cancel-by date.
func WriteCSV(w io.Writer, subs []models.Subscription, monthly map[uuid.UUID]decimal.Decimal) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(subscriptionColumns); err != nil {
		return err
	}
	for i := range subs {
		sub := &subs[i]
		perMonth, ok := monthly[sub.ID]
		if !ok {
			return fmt.Errorf("no monthly equivalent for subscription %s", sub.ID)
		}
		cancelBy := ""
		if deadline.HasDeadline(sub.CancelByDate) {
			cancelBy = sub.CancelByDate.String()
		}
		category := ""
		if sub.Category != nil {
			category = sub.Category.String()
		}
		row := []string{
			sub.ID.String(),
			sub.Name,
			sub.Amount.StringFixed(2),
			sub.Currency,
			sub.BillingPeriod.String(),
			perMonth.StringFixed(2),
			category,
			sub.Status.String(),
			sub.Intent.String(),
			sub.RenewalDate.String(),
			sub.CancelByRule.String(),
			cancelBy,
			sub.ProofStatus.String(),
			sub.CancellationMethod.String(),
			deref(sub.CancellationURL),
			dateString(sub.TrialEndDate),
			dateString(sub.CancellationDate),
			dateString(sub.CancelAttemptDate),
			deref(sub.Notes),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var auditColumns = []string{"section", "timestamp", "type", "title", "notes", "reference"}

// WriteAuditCSV writes the dispute packet for one subscription: a summary
// row, the timeline in order, then every proof document.
func WriteAuditCSV(w io.Writer, sub *models.Subscription) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(auditColumns); err != nil {
		return err
	}

	summary := fmt.Sprintf("%s %s %s (%s)", sub.Name, sub.Amount.StringFixed(2), sub.Currency, sub.BillingPeriod)
	reference := ""
	switch {
	case sub.CancellationDate != nil:
		reference = "cancelled " + sub.CancellationDate.String()
	case sub.CancelAttemptDate != nil:
		reference = "cancel attempted " + sub.CancelAttemptDate.String()
	}
	rows := [][]string{{
		"subscription",
		sub.UpdatedAt.UTC().Format(time.RFC3339),
		sub.Status.String(),
		summary,
		fmt.Sprintf("proof %s; method %s", sub.ProofStatus, sub.CancellationMethod),
		reference,
	}}

	for _, ev := range sub.Timeline {
		ref := ""
		if ev.ProofDocumentID != nil {
			ref = ev.ProofDocumentID.String()
		}
		rows = append(rows, []string{
			"timeline",
			ev.OccurredAt.UTC().Format(time.RFC3339),
			ev.Type.String(),
			ev.Description,
			deref(ev.Notes),
			ref,
		})
	}

	for _, doc := range sub.ProofDocuments {
		ref := doc.ID.String()
		if doc.ConfirmationCode != nil {
			ref = *doc.ConfirmationCode
		}
		title := doc.Name
		if doc.MimeType != nil {
			title = fmt.Sprintf("%s [%s]", doc.Name, *doc.MimeType)
		}
		rows = append(rows, []string{
			"proof",
			doc.RecordedAt.UTC().Format(time.RFC3339),
			doc.Type.String(),
			title,
			deref(doc.Notes),
			ref,
		})
	}

	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func dateString(d *types.Date) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.String()
}
