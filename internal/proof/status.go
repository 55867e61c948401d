// Package proof classifies how well a cancellation is evidenced.
package proof

import (
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
)

// Status derives the proof status from the subscription status and its
// documents. Live subscriptions never need proof; after a cancellation at
// least one screenshot, email or PDF is required for the proof to be complete.
func Status(status enums.SubscriptionStatus, docs []models.ProofDocument) enums.ProofStatus {
	if !status.IsCancellation() {
		return enums.ProofStatusNotRequired
	}
	if len(docs) == 0 {
		return enums.ProofStatusMissing
	}
	for _, doc := range docs {
		if doc.Type.IsSubstantive() {
			return enums.ProofStatusComplete
		}
	}
	return enums.ProofStatusIncomplete
}

// NeedsAttention reports whether a cancelled subscription still lacks
// adequate proof.
func NeedsAttention(status enums.SubscriptionStatus, proofStatus enums.ProofStatus) bool {
	if !status.IsCancellation() {
		return false
	}
	return proofStatus == enums.ProofStatusMissing || proofStatus == enums.ProofStatusIncomplete
}
