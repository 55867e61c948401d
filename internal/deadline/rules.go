// Package deadline derives cancel-by dates and default reminder settings from
// a subscription's billing facts and the user's intent. Every function is pure;
// "today" is always passed in.
package deadline

import (
	"time"

	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

// NoDeadline is the cancel-by date used for rule "anytime". It keeps the
// column populated so sorting and day counts need no special case.
var NoDeadline = types.NewDate(2099, time.December, 31)

// ComputeCancelByDate maps a renewal date and rule onto the last day the user
// can cancel. A custom rule without a custom date falls back to the renewal date.
func ComputeCancelByDate(renewal types.Date, rule enums.CancelByRule, custom *types.Date) types.Date {
	switch rule {
	case enums.CancelByRuleCustom:
		if custom != nil && !custom.IsZero() {
			return *custom
		}
		return renewal
	case enums.CancelByRuleAnytime:
		return NoDeadline
	case enums.CancelByRuleOneDayBefore:
		return renewal.AddDays(-1)
	case enums.CancelByRuleThreeDaysBefore:
		return renewal.AddDays(-3)
	case enums.CancelByRuleSevenDaysBefore:
		return renewal.AddDays(-7)
	case enums.CancelByRuleEndOfPeriod:
		return renewal
	default:
		return renewal
	}
}

// DefaultCancelByRule returns the rule suggested for an intent.
func DefaultCancelByRule(intent enums.Intent) enums.CancelByRule {
	switch intent {
	case enums.IntentKeep:
		return enums.CancelByRuleAnytime
	case enums.IntentTrial:
		return enums.CancelByRuleOneDayBefore
	case enums.IntentCancelSoon:
		return enums.CancelByRuleThreeDaysBefore
	default:
		return enums.CancelByRuleAnytime
	}
}

// DefaultReminders returns the reminder set suggested for an intent.
func DefaultReminders(intent enums.Intent) models.Reminders {
	switch intent {
	case enums.IntentTrial, enums.IntentCancelSoon:
		return models.Reminders{SevenDays: true, ThreeDays: true, OneDay: true, DayOf: true}
	default:
		return models.Reminders{}
	}
}

// DaysUntil counts calendar days from asOf to target, evaluated in asOf's
// location with both sides truncated to midnight. Positive means the target
// is in the future, zero means today.
func DaysUntil(target types.Date, asOf time.Time) int {
	return target.DaysSince(types.DateOf(asOf))
}

// DaysUntilCancelBy is DaysUntil applied to the stored cancel-by date.
func DaysUntilCancelBy(sub *models.Subscription, asOf time.Time) int {
	return DaysUntil(sub.CancelByDate, asOf)
}

// HasDeadline reports whether a cancel-by date is a real deadline rather
// than the "anytime" placeholder.
func HasDeadline(cancelBy types.Date) bool {
	return cancelBy.Before(NoDeadline)
}

// ApplyIntent sets intent and resets the rule and reminders to the intent's
// defaults, then re-derives the cancel-by date.
func ApplyIntent(sub *models.Subscription, intent enums.Intent) {
	sub.Intent = intent
	sub.CancelByRule = DefaultCancelByRule(intent)
	sub.Reminders = DefaultReminders(intent)
	if sub.CancelByRule != enums.CancelByRuleCustom {
		sub.CustomCancelByDate = nil
	}
	sub.CancelByDate = ComputeCancelByDate(sub.RenewalDate, sub.CancelByRule, sub.CustomCancelByDate)
}

// Preview is what a form shows while a user edits renewal date, intent or rule.
type Preview struct {
	Rule         enums.CancelByRule
	CancelByDate types.Date
	Reminders    models.Reminders
	DaysUntil    int
	HasDeadline  bool
}

// BuildPreview resolves defaults for intent when rule is empty and computes
// the resulting deadline relative to asOf.
func BuildPreview(renewal types.Date, intent enums.Intent, rule enums.CancelByRule, custom *types.Date, asOf time.Time) Preview {
	if rule == "" {
		rule = DefaultCancelByRule(intent)
	}
	cancelBy := ComputeCancelByDate(renewal, rule, custom)
	return Preview{
		Rule:         rule,
		CancelByDate: cancelBy,
		Reminders:    DefaultReminders(intent),
		DaysUntil:    DaysUntil(cancelBy, asOf),
		HasDeadline:  HasDeadline(cancelBy),
	}
}
