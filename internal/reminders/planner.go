// Package reminders decides which cancel-by reminders are due and dispatches
// each one exactly once per deadline.
package reminders

import (
	"time"

	"github.com/cancelmem/cancelmem-backend/internal/deadline"
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
)

// Offsets are the supported reminder points, in days before the deadline.
var Offsets = []int{7, 3, 1, 0}

// Horizon is how far ahead of asOf a deadline can be and still be due.
const Horizon = 7

// Due reports the reminder offset that fires for sub on asOf, if any. A
// reminder fires only for a live subscription the user means to drop, with a
// real deadline exactly 7, 3, 1 or 0 days away and that reminder switched on.
func Due(sub *models.Subscription, asOf time.Time) (int, bool) {
	if !sub.Status.IsLive() || sub.Intent == enums.IntentKeep {
		return 0, false
	}
	if !deadline.HasDeadline(sub.CancelByDate) {
		return 0, false
	}
	days := deadline.DaysUntilCancelBy(sub, asOf)
	for _, offset := range Offsets {
		if days == offset && sub.Reminders.Enabled(offset) {
			return offset, true
		}
	}
	return 0, false
}
