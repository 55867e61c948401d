package reporting

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

type SpendItem struct {
	SubscriptionID uuid.UUID
	Name           string
	Currency       string
	Monthly        decimal.Decimal
	// SharePercent is this subscription's share of its currency's monthly total.
	SharePercent decimal.Decimal
}

type CategoryTotal struct {
	Category enums.Category
	Currency string
	Monthly  decimal.Decimal
}

type SpendReport struct {
	Totals     []CurrencyTotal
	Categories []CategoryTotal
	Items      []SpendItem
}

// Spend computes the ongoing monthly burn of live subscriptions. Items are
// ordered by monthly cost, most expensive first.
func Spend(subs []models.Subscription) SpendReport {
	totals := map[string]*CurrencyTotal{}
	type catKey struct {
		category enums.Category
		currency string
	}
	categories := map[catKey]decimal.Decimal{}
	items := []SpendItem{}

	for i := range subs {
		sub := &subs[i]
		if !sub.Status.IsLive() {
			continue
		}
		monthly := MonthlyEquivalent(sub.Amount, sub.BillingPeriod)
		accumulate(totals, sub.Currency, monthly)

		category := enums.CategoryOther
		if sub.Category != nil && sub.Category.IsValid() {
			category = *sub.Category
		}
		key := catKey{category: category, currency: sub.Currency}
		if current, ok := categories[key]; ok {
			categories[key] = current.Add(monthly)
		} else {
			categories[key] = monthly
		}

		items = append(items, SpendItem{
			SubscriptionID: sub.ID,
			Name:           sub.Name,
			Currency:       sub.Currency,
			Monthly:        monthly,
		})
	}

	for i := range items {
		total := totals[items[i].Currency].Monthly
		if total.IsZero() {
			items[i].SharePercent = decimal.Zero
			continue
		}
		items[i].SharePercent = items[i].Monthly.Div(total).Mul(hundred).Round(1)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Monthly.GreaterThan(items[j].Monthly) })

	cats := make([]CategoryTotal, 0, len(categories))
	for key, monthly := range categories {
		cats = append(cats, CategoryTotal{Category: key.category, Currency: key.currency, Monthly: monthly})
	}
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].Currency != cats[j].Currency {
			return cats[i].Currency < cats[j].Currency
		}
		if !cats[i].Monthly.Equal(cats[j].Monthly) {
			return cats[i].Monthly.GreaterThan(cats[j].Monthly)
		}
		return cats[i].Category < cats[j].Category
	})

	return SpendReport{Totals: flatten(totals), Categories: cats, Items: items}
}
