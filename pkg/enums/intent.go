package enums

import "fmt"

// Intent is the user's declared plan for a subscription.
type Intent string

const (
	IntentKeep       Intent = "keep"
	IntentTrial      Intent = "trial"
	IntentCancelSoon Intent = "cancel-soon"
)

var validIntents = []Intent{
	IntentKeep,
	IntentTrial,
	IntentCancelSoon,
}

// String implements fmt.Stringer.
func (i Intent) String() string {
	return string(i)
}

// IsValid reports whether the value is a known Intent.
func (i Intent) IsValid() bool {
	for _, candidate := range validIntents {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseIntent converts raw input into a Intent.
func ParseIntent(value string) (Intent, error) {
	for _, candidate := range validIntents {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid intent %q", value)
}
