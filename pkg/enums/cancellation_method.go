package enums

import "fmt"

// CancellationMethod records how a subscription has to be cancelled.
type CancellationMethod string

const (
	CancellationMethodOnline   CancellationMethod = "online"
	CancellationMethodPhone    CancellationMethod = "phone"
	CancellationMethodEmail    CancellationMethod = "email"
	CancellationMethodInApp    CancellationMethod = "in-app"
	CancellationMethodInPerson CancellationMethod = "in-person"
	CancellationMethodMail     CancellationMethod = "mail"
	CancellationMethodOther    CancellationMethod = "other"
)

var validCancellationMethods = []CancellationMethod{
	CancellationMethodOnline,
	CancellationMethodPhone,
	CancellationMethodEmail,
	CancellationMethodInApp,
	CancellationMethodInPerson,
	CancellationMethodMail,
	CancellationMethodOther,
}

// String implements fmt.Stringer.
func (c CancellationMethod) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CancellationMethod.
func (c CancellationMethod) IsValid() bool {
	for _, candidate := range validCancellationMethods {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCancellationMethod converts raw input into a CancellationMethod.
func ParseCancellationMethod(value string) (CancellationMethod, error) {
	for _, candidate := range validCancellationMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cancellation method %q", value)
}
