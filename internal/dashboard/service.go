// Package dashboard assembles the read-only home screen: action buckets,
// savings and spend, all computed over the user's stored subscriptions.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cancelmem/cancelmem-backend/internal/deadline"
	"github.com/cancelmem/cancelmem-backend/internal/proof"
	"github.com/cancelmem/cancelmem-backend/internal/reporting"
	"github.com/cancelmem/cancelmem-backend/internal/subscriptions"
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

type subscriptionLister interface {
	List(ctx context.Context, userID uuid.UUID, params subscriptions.ListParams) ([]models.Subscription, error)
}

type Counts struct {
	Total           int `json:"total"`
	Live            int `json:"live"`
	Cancelled       int `json:"cancelled"`
	CancelAttempted int `json:"cancel_attempted"`
	NeedsProof      int `json:"needs_proof"`
}

type EntryView struct {
	ID           uuid.UUID                `json:"id"`
	Name         string                   `json:"name"`
	Amount       decimal.Decimal          `json:"amount"`
	Currency     string                   `json:"currency"`
	Status       enums.SubscriptionStatus `json:"status"`
	ProofStatus  enums.ProofStatus        `json:"proof_status"`
	CancelByDate types.Date               `json:"cancel_by_date"`
	HasDeadline  bool                     `json:"has_deadline"`
	RenewalDate  types.Date               `json:"renewal_date"`
	Days         int                      `json:"days"`
}

type BucketsView struct {
	CancelByDueSoon       []EntryView `json:"cancel_by_due_soon"`
	TrialsNeedingDecision []EntryView `json:"trials_needing_decision"`
	ChargesAtRisk         []EntryView `json:"charges_at_risk"`
	ProofRequired         []EntryView `json:"proof_required"`
}

type TotalView struct {
	Currency string          `json:"currency"`
	Monthly  decimal.Decimal `json:"monthly"`
	Yearly   decimal.Decimal `json:"yearly"`
	Count    int             `json:"count"`
}

type SavingsItemView struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	MonthlySaved decimal.Decimal `json:"monthly_saved"`
	Currency     string          `json:"currency"`
}

type SavingsView struct {
	CancelledCount int               `json:"cancelled_count"`
	Totals         []TotalView       `json:"totals"`
	Items          []SavingsItemView `json:"items"`
}

type CategoryView struct {
	Category enums.Category  `json:"category"`
	Currency string          `json:"currency"`
	Monthly  decimal.Decimal `json:"monthly"`
}

type SpendItemView struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Currency     string          `json:"currency"`
	Monthly      decimal.Decimal `json:"monthly"`
	SharePercent decimal.Decimal `json:"share_percent"`
}

type SpendView struct {
	Totals     []TotalView     `json:"totals"`
	Categories []CategoryView  `json:"categories"`
	Items      []SpendItemView `json:"items"`
}

// Overview is the dashboard payload.
type Overview struct {
	AsOf    types.Date  `json:"as_of"`
	Counts  Counts      `json:"counts"`
	Buckets BucketsView `json:"buckets"`
	Savings SavingsView `json:"savings"`
	Spend   SpendView   `json:"spend"`
}

type Service struct {
	subs subscriptionLister
}

func NewService(subs subscriptionLister) (*Service, error) {
	if subs == nil {
		return nil, fmt.Errorf("subscription lister required")
	}
	return &Service{subs: subs}, nil
}

// Overview computes the dashboard as of asOf; asOf's location decides what
// "today" is.
func (s *Service) Overview(ctx context.Context, userID uuid.UUID, asOf time.Time) (*Overview, error) {
	subs, err := s.subs.List(ctx, userID, subscriptions.ListParams{})
	if err != nil {
		return nil, err
	}
	return Build(subs, asOf), nil
}

// Build is Overview without the store lookup.
func Build(subs []models.Subscription, asOf time.Time) *Overview {
	buckets := reporting.Bucketize(subs, asOf)
	savings := reporting.Savings(subs)
	spend := reporting.Spend(subs)

	out := &Overview{
		AsOf:   types.DateOf(asOf),
		Counts: count(subs),
		Buckets: BucketsView{
			CancelByDueSoon:       entries(buckets.CancelByDueSoon),
			TrialsNeedingDecision: entries(buckets.TrialsNeedingDecision),
			ChargesAtRisk:         entries(buckets.ChargesAtRisk),
			ProofRequired:         entries(buckets.ProofRequired),
		},
		Savings: SavingsView{
			CancelledCount: savings.CancelledCount,
			Totals:         totals(savings.Totals),
			Items:          make([]SavingsItemView, 0, len(savings.Items)),
		},
		Spend: SpendView{
			Totals:     totals(spend.Totals),
			Categories: make([]CategoryView, 0, len(spend.Categories)),
			Items:      make([]SpendItemView, 0, len(spend.Items)),
		},
	}
	for _, item := range savings.Items {
		out.Savings.Items = append(out.Savings.Items, SavingsItemView{
			ID:           item.SubscriptionID,
			Name:         item.Name,
			MonthlySaved: item.MonthlySaved,
			Currency:     item.Currency,
		})
	}
	for _, c := range spend.Categories {
		out.Spend.Categories = append(out.Spend.Categories, CategoryView{Category: c.Category, Currency: c.Currency, Monthly: c.Monthly})
	}
	for _, item := range spend.Items {
		out.Spend.Items = append(out.Spend.Items, SpendItemView{
			ID:           item.SubscriptionID,
			Name:         item.Name,
			Currency:     item.Currency,
			Monthly:      item.Monthly,
			SharePercent: item.SharePercent,
		})
	}
	return out
}

func count(subs []models.Subscription) Counts {
	c := Counts{Total: len(subs)}
	for i := range subs {
		switch {
		case subs[i].Status.IsLive():
			c.Live++
		case subs[i].Status == enums.SubscriptionStatusCancelled:
			c.Cancelled++
		case subs[i].Status == enums.SubscriptionStatusCancelAttempted:
			c.CancelAttempted++
		}
		if proof.NeedsAttention(subs[i].Status, subs[i].ProofStatus) {
			c.NeedsProof++
		}
	}
	return c
}

func entries(in []reporting.Entry) []EntryView {
	out := make([]EntryView, 0, len(in))
	for _, e := range in {
		sub := e.Subscription
		out = append(out, EntryView{
			ID:           sub.ID,
			Name:         sub.Name,
			Amount:       sub.Amount,
			Currency:     sub.Currency,
			Status:       sub.Status,
			ProofStatus:  sub.ProofStatus,
			CancelByDate: sub.CancelByDate,
			HasDeadline:  deadline.HasDeadline(sub.CancelByDate),
			RenewalDate:  sub.RenewalDate,
			Days:         e.Days,
		})
	}
	return out
}

func totals(in []reporting.CurrencyTotal) []TotalView {
	out := make([]TotalView, 0, len(in))
	for _, t := range in {
		out = append(out, TotalView{Currency: t.Currency, Monthly: t.Monthly, Yearly: t.Yearly, Count: t.Count})
	}
	return out
}
