// Package reporting aggregates subscriptions into the figures shown on the
// dashboard and in exports. All functions are pure reducers over a snapshot.
package reporting

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
)

// WeeksPerMonth approximates 52/12 and is kept for parity with figures users
// have already seen.
var WeeksPerMonth = decimal.RequireFromString("4.33")

var (
	three  = decimal.NewFromInt(3)
	twelve = decimal.NewFromInt(12)
)

// MonthlyEquivalent normalizes an amount to a per-month figure. One-time
// charges and unknown periods contribute nothing.
func MonthlyEquivalent(amount decimal.Decimal, period enums.BillingPeriod) decimal.Decimal {
	switch period {
	case enums.BillingPeriodWeekly:
		return amount.Mul(WeeksPerMonth)
	case enums.BillingPeriodMonthly:
		return amount
	case enums.BillingPeriodQuarterly:
		return amount.Div(three)
	case enums.BillingPeriodYearly:
		return amount.Div(twelve)
	default:
		return decimal.Zero
	}
}

// Yearly projects a monthly figure onto a year.
func Yearly(monthly decimal.Decimal) decimal.Decimal {
	return monthly.Mul(twelve)
}

// MonthlyEquivalents maps each subscription ID to its monthly figure.
func MonthlyEquivalents(subs []models.Subscription) map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal, len(subs))
	for i := range subs {
		out[subs[i].ID] = MonthlyEquivalent(subs[i].Amount, subs[i].BillingPeriod)
	}
	return out
}
