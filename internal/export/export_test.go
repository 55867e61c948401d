package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cancelmem/cancelmem-backend/internal/deadline"
	"github.com/cancelmem/cancelmem-backend/internal/reporting"
	"github.com/cancelmem/cancelmem-backend/internal/subscriptions"
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

var stamp = time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)

func sampleSubs() []models.Subscription {
	trial := models.Subscription{
		ID:            uuid.New(),
		Name:          "Netflix",
		Amount:        decimal.RequireFromString("15.99"),
		Currency:      "USD",
		BillingPeriod: enums.BillingPeriodMonthly,
		Intent:        enums.IntentTrial,
		CancelByRule:  enums.CancelByRuleOneDayBefore,
		Status:        enums.SubscriptionStatusTrial,
		RenewalDate:   types.MustParseDate("2026-03-15"),
		CancelByDate:  types.MustParseDate("2026-03-14"),
		ProofStatus:   enums.ProofStatusNotRequired,
		Reminders:     models.Reminders{SevenDays: true, DayOf: true},
	}
	kept := models.Subscription{
		ID:            uuid.New(),
		Name:          "Spotify",
		Amount:        decimal.RequireFromString("120"),
		Currency:      "USD",
		BillingPeriod: enums.BillingPeriodYearly,
		Intent:        enums.IntentKeep,
		CancelByRule:  enums.CancelByRuleAnytime,
		Status:        enums.SubscriptionStatusActive,
		RenewalDate:   types.MustParseDate("2026-09-01"),
		CancelByDate:  deadline.NoDeadline,
		ProofStatus:   enums.ProofStatusNotRequired,
	}
	gone := models.Subscription{
		ID:            uuid.New(),
		Name:          "Gym",
		Amount:        decimal.RequireFromString("30"),
		Currency:      "USD",
		BillingPeriod: enums.BillingPeriodMonthly,
		Intent:        enums.IntentCancelSoon,
		CancelByRule:  enums.CancelByRuleThreeDaysBefore,
		Status:        enums.SubscriptionStatusCancelled,
		RenewalDate:   types.MustParseDate("2026-03-20"),
		CancelByDate:  types.MustParseDate("2026-03-17"),
		ProofStatus:   enums.ProofStatusMissing,
	}
	return []models.Subscription{trial, kept, gone}
}

func TestWriteCSVUsesStoredDerivedFields(t *testing.T) {
	subs := sampleSubs()
	// a stale stored value must be exported as-is
	subs[0].CancelByDate = types.MustParseDate("2026-03-10")

	monthly := reporting.MonthlyEquivalents(subs)
	// the writer prints what it is given
	monthly[subs[0].ID] = decimal.RequireFromString("16.5")

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, subs, monthly))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, subscriptionColumns, records[0])

	col := func(name string) int {
		for i, c := range subscriptionColumns {
			if c == name {
				return i
			}
		}
		t.Fatalf("unknown column %s", name)
		return -1
	}
	assert.Equal(t, "2026-03-10", records[1][col("cancel_by_date")])
	assert.Equal(t, "", records[2][col("cancel_by_date")])
	assert.Equal(t, "16.50", records[1][col("monthly_equivalent")])
	assert.Equal(t, "10.00", records[2][col("monthly_equivalent")])
	assert.Equal(t, "missing", records[3][col("proof_status")])
}

func TestWriteCSVRequiresMonthlyFigures(t *testing.T) {
	subs := sampleSubs()
	monthly := reporting.MonthlyEquivalents(subs[:2])

	var buf bytes.Buffer
	err := WriteCSV(&buf, subs, monthly)
	require.ErrorContains(t, err, subs[2].ID.String())
}

func TestWriteAuditCSV(t *testing.T) {
	sub := sampleSubs()[2]
	proofID := uuid.New()
	code := "ABC-123"
	cancelled := types.MustParseDate("2026-03-12")
	sub.CancellationDate = &cancelled
	sub.ProofDocuments = []models.ProofDocument{{
		ID:               proofID,
		Name:             "Call reference",
		Type:             enums.ProofDocumentTypeConfirmationNumber,
		RecordedAt:       stamp,
		ConfirmationCode: &code,
	}}
	sub.Timeline = []models.TimelineEvent{
		{Type: enums.TimelineEventTypeCreated, OccurredAt: stamp, Description: "Started tracking Gym"},
		{Type: enums.TimelineEventTypeProofAdded, OccurredAt: stamp, Description: "Added proof", ProofDocumentID: &proofID},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAuditCSV(&buf, &sub))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "subscription", records[1][0])
	assert.Equal(t, "cancelled 2026-03-12", records[1][5])
	assert.Equal(t, "timeline", records[2][0])
	assert.Equal(t, proofID.String(), records[3][5])
	assert.Equal(t, []string{"proof", "2026-03-01T08:00:00Z", "confirmation-number", "Call reference", "", "ABC-123"}, records[4])
}

func TestICalendarOnlyRealDeadlines(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteICalendar(&buf, sampleSubs(), stamp))

	cal, err := ical.NewDecoder(strings.NewReader(buf.String())).Decode()
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 1)

	summary, err := events[0].Props.Text(ical.PropSummary)
	require.NoError(t, err)
	assert.Equal(t, "Cancel Netflix", summary)
	assert.Equal(t, "20260314", events[0].Props.Get(ical.PropDateTimeStart).Value)

	var triggers []string
	for _, child := range events[0].Children {
		if child.Name == ical.CompAlarm {
			triggers = append(triggers, child.Props.Get(ical.PropTrigger).Value)
		}
	}
	assert.Equal(t, []string{"-P6DT15H", "PT9H"}, triggers)
}

func TestICalendarEmpty(t *testing.T) {
	subs := sampleSubs()[1:2]
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteICalendar(&buf, subs, stamp), ErrNoDeadlines)
}

func TestTriggerDuration(t *testing.T) {
	assert.Equal(t, "PT9H", triggerDuration(0))
	assert.Equal(t, "-PT15H", triggerDuration(1))
	assert.Equal(t, "-P2DT15H", triggerDuration(3))
}

type stubReader struct {
	subs []models.Subscription
}

func (s stubReader) Get(_ context.Context, _, id uuid.UUID) (*models.Subscription, error) {
	for i := range s.subs {
		if s.subs[i].ID == id {
			return &s.subs[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
}

func (s stubReader) List(context.Context, uuid.UUID, subscriptions.ListParams) ([]models.Subscription, error) {
	return s.subs, nil
}

type stubGate struct{ pro bool }

func (g stubGate) RequirePro(context.Context, uuid.UUID) error {
	if g.pro {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodePlanRequired, "pro required")
}

func TestServiceRequiresPro(t *testing.T) {
	svc, err := NewService(ServiceParams{Subscriptions: stubReader{subs: sampleSubs()}, Gate: stubGate{}})
	require.NoError(t, err)
	ctx := context.Background()
	var buf bytes.Buffer

	assert.True(t, pkgerrors.IsCode(svc.SubscriptionsCSV(ctx, uuid.New(), &buf), pkgerrors.CodePlanRequired))
	assert.True(t, pkgerrors.IsCode(svc.Deadlines(ctx, uuid.New(), &buf), pkgerrors.CodePlanRequired))
	assert.True(t, pkgerrors.IsCode(svc.AuditCSV(ctx, uuid.New(), uuid.New(), &buf), pkgerrors.CodePlanRequired))
	assert.Zero(t, buf.Len())
}

func TestServiceDeadlinesForPro(t *testing.T) {
	subs := sampleSubs()
	svc, err := NewService(ServiceParams{
		Subscriptions: stubReader{subs: subs},
		Gate:          stubGate{pro: true},
		Now:           func() time.Time { return stamp },
	})
	require.NoError(t, err)
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, svc.Deadlines(ctx, uuid.New(), &buf))
	assert.Contains(t, buf.String(), "BEGIN:VCALENDAR")

	buf.Reset()
	require.NoError(t, svc.AuditCSV(ctx, uuid.New(), subs[0].ID, &buf))
	assert.Contains(t, buf.String(), "Netflix")

	empty, err := NewService(ServiceParams{Subscriptions: stubReader{subs: subs[1:2]}, Gate: stubGate{pro: true}})
	require.NoError(t, err)
	assert.True(t, pkgerrors.IsCode(empty.Deadlines(ctx, uuid.New(), &buf), pkgerrors.CodeNotFound))
}
