package enums

import "fmt"

// SubscriptionStatus is the lifecycle state of a tracked subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive          SubscriptionStatus = "active"
	SubscriptionStatusTrial           SubscriptionStatus = "trial"
	SubscriptionStatusCancelled       SubscriptionStatus = "cancelled"
	SubscriptionStatusCancelAttempted SubscriptionStatus = "cancel-attempted"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusTrial,
	SubscriptionStatusCancelled,
	SubscriptionStatusCancelAttempted,
}

// String implements fmt.Stringer.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SubscriptionStatus.
func (s SubscriptionStatus) IsValid() bool {
	for _, candidate := range validSubscriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSubscriptionStatus converts raw input into a SubscriptionStatus.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	for _, candidate := range validSubscriptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription status %q", value)
}

// IsCancellation reports whether the status follows a cancellation attempt.
func (s SubscriptionStatus) IsCancellation() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusCancelAttempted
}

// IsLive reports whether the subscription may still charge.
func (s SubscriptionStatus) IsLive() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrial
}
