package subscriptions

import (
	"github.com/cancelmem/cancelmem-backend/internal/deadline"
	"github.com/cancelmem/cancelmem-backend/internal/proof"
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
)

// Recompute refreshes the derived cancel-by date and proof status from their
// source fields. Every write path calls it right before persisting.
func Recompute(sub *models.Subscription) {
	sub.CancelByDate = deadline.ComputeCancelByDate(sub.RenewalDate, sub.CancelByRule, sub.CustomCancelByDate)
	sub.ProofStatus = proof.Status(sub.Status, sub.ProofDocuments)
}

// Drifted reports whether the stored derived fields disagree with a fresh
// computation. It does not modify sub.
func Drifted(sub *models.Subscription) bool {
	want := *sub
	Recompute(&want)
	return want.CancelByDate != sub.CancelByDate || want.ProofStatus != sub.ProofStatus
}
