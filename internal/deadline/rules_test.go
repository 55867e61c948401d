package deadline

import (
	"testing"
	"time"

	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

func TestComputeCancelByDateRuleArithmetic(t *testing.T) {
	renewal := types.MustParseDate("2026-03-15")
	custom := types.MustParseDate("2026-03-01")

	cases := []struct {
		rule   enums.CancelByRule
		custom *types.Date
		want   string
	}{
		{rule: enums.CancelByRuleOneDayBefore, want: "2026-03-14"},
		{rule: enums.CancelByRuleThreeDaysBefore, want: "2026-03-12"},
		{rule: enums.CancelByRuleSevenDaysBefore, want: "2026-03-08"},
		{rule: enums.CancelByRuleEndOfPeriod, want: "2026-03-15"},
		{rule: enums.CancelByRuleCustom, custom: &custom, want: "2026-03-01"},
		{rule: enums.CancelByRuleCustom, want: "2026-03-15"},
		{rule: enums.CancelByRuleAnytime, want: "2099-12-31"},
		{rule: enums.CancelByRule("fortnight-before"), want: "2026-03-15"},
	}

	for _, tc := range cases {
		got := ComputeCancelByDate(renewal, tc.rule, tc.custom)
		if got.String() != tc.want {
			t.Fatalf("rule %q: expected %s, got %s", tc.rule, tc.want, got)
		}
	}
}

func TestComputeCancelByDateCrossesMonthBoundary(t *testing.T) {
	got := ComputeCancelByDate(types.MustParseDate("2026-03-02"), enums.CancelByRuleSevenDaysBefore, nil)
	if got.String() != "2026-02-23" {
		t.Fatalf("expected 2026-02-23, got %s", got)
	}
}

func TestComputeCancelByDateIsDeterministic(t *testing.T) {
	renewal := types.MustParseDate("2026-07-04")
	first := ComputeCancelByDate(renewal, enums.CancelByRuleThreeDaysBefore, nil)
	for i := 0; i < 5; i++ {
		if got := ComputeCancelByDate(renewal, enums.CancelByRuleThreeDaysBefore, nil); got != first {
			t.Fatalf("iteration %d returned %s, want %s", i, got, first)
		}
	}
}

func TestAnytimeSentinelIsFarAway(t *testing.T) {
	asOf := time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)
	cancelBy := ComputeCancelByDate(types.MustParseDate("2026-10-20"), enums.CancelByRuleAnytime, nil)
	if days := DaysUntil(cancelBy, asOf); days <= 10000 {
		t.Fatalf("expected sentinel more than 10000 days away, got %d", days)
	}
	if HasDeadline(cancelBy) {
		t.Fatal("sentinel must not count as a deadline")
	}
	if !HasDeadline(types.MustParseDate("2026-10-20")) {
		t.Fatal("ordinary date should count as a deadline")
	}
}

func TestDefaultCancelByRule(t *testing.T) {
	cases := map[enums.Intent]enums.CancelByRule{
		enums.IntentKeep:       enums.CancelByRuleAnytime,
		enums.IntentTrial:      enums.CancelByRuleOneDayBefore,
		enums.IntentCancelSoon: enums.CancelByRuleThreeDaysBefore,
		enums.Intent("unsure"): enums.CancelByRuleAnytime,
	}
	for intent, want := range cases {
		if got := DefaultCancelByRule(intent); got != want {
			t.Fatalf("intent %q: expected %q, got %q", intent, want, got)
		}
	}
}

func TestDefaultReminders(t *testing.T) {
	all := models.Reminders{SevenDays: true, ThreeDays: true, OneDay: true, DayOf: true}
	cases := map[enums.Intent]models.Reminders{
		enums.IntentKeep:       {},
		enums.IntentTrial:      all,
		enums.IntentCancelSoon: all,
		enums.Intent("unsure"): {},
	}
	for intent, want := range cases {
		if got := DefaultReminders(intent); got != want {
			t.Fatalf("intent %q: expected %+v, got %+v", intent, want, got)
		}
	}
}

func TestDaysUntilTruncatesToMidnight(t *testing.T) {
	target := types.MustParseDate("2026-03-15")

	cases := []struct {
		asOf time.Time
		want int
	}{
		{asOf: time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC), want: 1},
		{asOf: time.Date(2026, 3, 15, 0, 0, 1, 0, time.UTC), want: 0},
		{asOf: time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC), want: 0},
		{asOf: time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), want: -1},
		{asOf: time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC), want: 7},
	}
	for _, tc := range cases {
		if got := DaysUntil(target, tc.asOf); got != tc.want {
			t.Fatalf("asOf %s: expected %d, got %d", tc.asOf, tc.want, got)
		}
	}
}

func TestDaysUntilUsesCallerLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	// 20:00 UTC on the 14th is already the 15th in Tokyo.
	asOf := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC).In(tokyo)
	if got := DaysUntil(types.MustParseDate("2026-03-15"), asOf); got != 0 {
		t.Fatalf("expected 0 days in Tokyo, got %d", got)
	}
}

func TestDefaultsAreIdempotent(t *testing.T) {
	renewal := types.MustParseDate("2026-09-30")
	rule := DefaultCancelByRule(enums.IntentCancelSoon)
	first := ComputeCancelByDate(renewal, rule, nil)
	rule = DefaultCancelByRule(enums.IntentCancelSoon)
	second := ComputeCancelByDate(renewal, rule, nil)
	if first != second {
		t.Fatalf("expected stable result, got %s then %s", first, second)
	}
}

func TestTrialThenKeepScenario(t *testing.T) {
	sub := &models.Subscription{RenewalDate: types.MustParseDate("2026-06-01")}

	ApplyIntent(sub, enums.IntentTrial)
	if sub.CancelByRule != enums.CancelByRuleOneDayBefore {
		t.Fatalf("expected 1-day-before, got %q", sub.CancelByRule)
	}
	if sub.CancelByDate.String() != "2026-05-31" {
		t.Fatalf("expected 2026-05-31, got %s", sub.CancelByDate)
	}
	if !sub.Reminders.Any() {
		t.Fatal("trial should enable reminders")
	}

	ApplyIntent(sub, enums.IntentKeep)
	if sub.CancelByRule != enums.CancelByRuleAnytime {
		t.Fatalf("expected anytime, got %q", sub.CancelByRule)
	}
	if sub.CancelByDate != NoDeadline {
		t.Fatalf("expected sentinel, got %s", sub.CancelByDate)
	}
	if sub.Reminders.Any() {
		t.Fatalf("keep should clear reminders, got %+v", sub.Reminders)
	}
}

func TestApplyIntentClearsCustomDate(t *testing.T) {
	custom := types.MustParseDate("2026-05-01")
	sub := &models.Subscription{
		RenewalDate:        types.MustParseDate("2026-06-01"),
		CancelByRule:       enums.CancelByRuleCustom,
		CustomCancelByDate: &custom,
	}
	ApplyIntent(sub, enums.IntentCancelSoon)
	if sub.CustomCancelByDate != nil {
		t.Fatal("expected custom date to be cleared")
	}
	if sub.CancelByDate.String() != "2026-05-29" {
		t.Fatalf("expected 2026-05-29, got %s", sub.CancelByDate)
	}
}

func TestBuildPreview(t *testing.T) {
	asOf := time.Date(2026, 5, 25, 9, 0, 0, 0, time.UTC)
	p := BuildPreview(types.MustParseDate("2026-06-01"), enums.IntentTrial, "", nil, asOf)
	if p.Rule != enums.CancelByRuleOneDayBefore || p.CancelByDate.String() != "2026-05-31" {
		t.Fatalf("unexpected preview %+v", p)
	}
	if p.DaysUntil != 6 || !p.HasDeadline {
		t.Fatalf("expected 6 days and a deadline, got %+v", p)
	}

	p = BuildPreview(types.MustParseDate("2026-06-01"), enums.IntentTrial, enums.CancelByRuleSevenDaysBefore, nil, asOf)
	if p.CancelByDate.String() != "2026-05-25" || p.DaysUntil != 0 {
		t.Fatalf("explicit rule should win, got %+v", p)
	}
}
