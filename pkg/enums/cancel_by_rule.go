package enums

import "fmt"

// CancelByRule describes how far ahead of renewal the cancel-by deadline falls.
type CancelByRule string

const (
	CancelByRuleAnytime         CancelByRule = "anytime"
	CancelByRuleOneDayBefore    CancelByRule = "1-day-before"
	CancelByRuleThreeDaysBefore CancelByRule = "3-days-before"
	CancelByRuleSevenDaysBefore CancelByRule = "7-days-before"
	CancelByRuleEndOfPeriod     CancelByRule = "end-of-period"
	CancelByRuleCustom          CancelByRule = "custom"
)

var validCancelByRules = []CancelByRule{
	CancelByRuleAnytime,
	CancelByRuleOneDayBefore,
	CancelByRuleThreeDaysBefore,
	CancelByRuleSevenDaysBefore,
	CancelByRuleEndOfPeriod,
	CancelByRuleCustom,
}

// String implements fmt.Stringer.
func (c CancelByRule) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CancelByRule.
func (c CancelByRule) IsValid() bool {
	for _, candidate := range validCancelByRules {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCancelByRule converts raw input into a CancelByRule.
func ParseCancelByRule(value string) (CancelByRule, error) {
	for _, candidate := range validCancelByRules {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cancel-by rule %q", value)
}
