package reporting

import (
	"sort"
	"time"

	"github.com/cancelmem/cancelmem-backend/internal/deadline"
	"github.com/cancelmem/cancelmem-backend/internal/proof"
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

// UrgencyWindowDays bounds the deadline-driven buckets.
const UrgencyWindowDays = 7

// Entry is a subscription placed in a bucket.
type Entry struct {
	Subscription *models.Subscription
	// Days is days left for the deadline buckets, which sort soonest first.
	// For proof-required it is days since the last update, and that bucket
	// is ordered oldest-first, so the largest Days leads.
	Days int
}

type Buckets struct {
	CancelByDueSoon       []Entry
	TrialsNeedingDecision []Entry
	ChargesAtRisk         []Entry
	ProofRequired         []Entry
}

// Total is the number of bucket placements; a subscription can appear in
// more than one bucket.
func (b Buckets) Total() int {
	return len(b.CancelByDueSoon) + len(b.TrialsNeedingDecision) + len(b.ChargesAtRisk) + len(b.ProofRequired)
}

// Bucketize partitions subs into the action buckets as of asOf. Records with
// missing dates are left out of the date-driven buckets.
func Bucketize(subs []models.Subscription, asOf time.Time) Buckets {
	var out Buckets
	for i := range subs {
		sub := &subs[i]

		if sub.Status.IsLive() {
			if sub.Intent != enums.IntentKeep {
				if days, ok := within(sub.CancelByDate, asOf); ok {
					out.CancelByDueSoon = append(out.CancelByDueSoon, Entry{Subscription: sub, Days: days})
				}
			}
			if sub.Intent == enums.IntentCancelSoon {
				if days, ok := within(sub.RenewalDate, asOf); ok {
					out.ChargesAtRisk = append(out.ChargesAtRisk, Entry{Subscription: sub, Days: days})
				}
			}
		}

		if sub.Status == enums.SubscriptionStatusTrial && sub.Intent == enums.IntentTrial && sub.TrialEndDate != nil {
			if days, ok := within(*sub.TrialEndDate, asOf); ok {
				out.TrialsNeedingDecision = append(out.TrialsNeedingDecision, Entry{Subscription: sub, Days: days})
			}
		}

		if proof.NeedsAttention(sub.Status, sub.ProofStatus) {
			age := types.DateOf(asOf).DaysSince(types.DateOf(sub.UpdatedAt.In(asOf.Location())))
			out.ProofRequired = append(out.ProofRequired, Entry{Subscription: sub, Days: age})
		}
	}

	byDays := func(entries []Entry) {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Days < entries[j].Days })
	}
	byDays(out.CancelByDueSoon)
	byDays(out.TrialsNeedingDecision)
	byDays(out.ChargesAtRisk)
	sort.SliceStable(out.ProofRequired, func(i, j int) bool {
		return out.ProofRequired[i].Subscription.UpdatedAt.Before(out.ProofRequired[j].Subscription.UpdatedAt)
	})

	return out
}

func within(target types.Date, asOf time.Time) (int, bool) {
	if target.IsZero() {
		return 0, false
	}
	days := deadline.DaysUntil(target, asOf)
	return days, days >= 0 && days <= UrgencyWindowDays
}
