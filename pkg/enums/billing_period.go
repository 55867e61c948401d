package enums

import "fmt"

// BillingPeriod defines how often a tracked subscription charges.
type BillingPeriod string

const (
	BillingPeriodWeekly    BillingPeriod = "weekly"
	BillingPeriodMonthly   BillingPeriod = "monthly"
	BillingPeriodQuarterly BillingPeriod = "quarterly"
	BillingPeriodYearly    BillingPeriod = "yearly"
	BillingPeriodOneTime   BillingPeriod = "one-time"
)

var validBillingPeriods = []BillingPeriod{
	BillingPeriodWeekly,
	BillingPeriodMonthly,
	BillingPeriodQuarterly,
	BillingPeriodYearly,
	BillingPeriodOneTime,
}

// String implements fmt.Stringer.
func (b BillingPeriod) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BillingPeriod.
func (b BillingPeriod) IsValid() bool {
	for _, candidate := range validBillingPeriods {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBillingPeriod converts raw input into a BillingPeriod.
func ParseBillingPeriod(value string) (BillingPeriod, error) {
	for _, candidate := range validBillingPeriods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing period %q", value)
}
