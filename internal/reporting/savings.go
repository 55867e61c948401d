package reporting

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
)

type SavingsItem struct {
	SubscriptionID uuid.UUID
	Name           string
	MonthlySaved   decimal.Decimal
	Currency       string
}

// CurrencyTotal sums monthly figures of a single currency. Amounts in
// different currencies are never added together.
type CurrencyTotal struct {
	Currency string
	Monthly  decimal.Decimal
	Yearly   decimal.Decimal
	Count    int
}

type SavingsReport struct {
	CancelledCount int
	Totals         []CurrencyTotal
	Items          []SavingsItem
}

// Total returns the totals for currency, or a zero total when nothing was
// saved in it.
func (r SavingsReport) Total(currency string) CurrencyTotal {
	for _, t := range r.Totals {
		if t.Currency == currency {
			return t
		}
	}
	return CurrencyTotal{Currency: currency, Monthly: decimal.Zero, Yearly: decimal.Zero}
}

// Savings totals what confirmed cancellations save. Cancel-attempted
// subscriptions are unconfirmed and do not count.
func Savings(subs []models.Subscription) SavingsReport {
	report := SavingsReport{Items: []SavingsItem{}}
	totals := map[string]*CurrencyTotal{}

	for i := range subs {
		sub := &subs[i]
		if sub.Status != enums.SubscriptionStatusCancelled {
			continue
		}
		monthly := MonthlyEquivalent(sub.Amount, sub.BillingPeriod)
		report.CancelledCount++
		report.Items = append(report.Items, SavingsItem{
			SubscriptionID: sub.ID,
			Name:           sub.Name,
			MonthlySaved:   monthly,
			Currency:       sub.Currency,
		})
		accumulate(totals, sub.Currency, monthly)
	}

	report.Totals = flatten(totals)
	return report
}

func accumulate(totals map[string]*CurrencyTotal, currency string, monthly decimal.Decimal) {
	t, ok := totals[currency]
	if !ok {
		t = &CurrencyTotal{Currency: currency, Monthly: decimal.Zero}
		totals[currency] = t
	}
	t.Monthly = t.Monthly.Add(monthly)
	t.Count++
}

func flatten(totals map[string]*CurrencyTotal) []CurrencyTotal {
	out := make([]CurrencyTotal, 0, len(totals))
	for _, t := range totals {
		t.Yearly = Yearly(t.Monthly)
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}
