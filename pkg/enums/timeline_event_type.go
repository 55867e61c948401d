package enums

import "fmt"

// TimelineEventType names an entry in a subscription's history.
type TimelineEventType string

const (
	TimelineEventTypeCreated               TimelineEventType = "created"
	TimelineEventTypeReminderSet           TimelineEventType = "reminder-set"
	TimelineEventTypeCancellationAttempted TimelineEventType = "cancellation-attempted"
	TimelineEventTypeCancellationConfirmed TimelineEventType = "cancellation-confirmed"
	TimelineEventTypeProofAdded            TimelineEventType = "proof-added"
	TimelineEventTypeChargeDisputed        TimelineEventType = "charge-disputed"
	TimelineEventTypeSupportContacted      TimelineEventType = "support-contacted"
	TimelineEventTypeStatusChanged         TimelineEventType = "status-changed"
	TimelineEventTypeNoteAdded             TimelineEventType = "note-added"
)

var validTimelineEventTypes = []TimelineEventType{
	TimelineEventTypeCreated,
	TimelineEventTypeReminderSet,
	TimelineEventTypeCancellationAttempted,
	TimelineEventTypeCancellationConfirmed,
	TimelineEventTypeProofAdded,
	TimelineEventTypeChargeDisputed,
	TimelineEventTypeSupportContacted,
	TimelineEventTypeStatusChanged,
	TimelineEventTypeNoteAdded,
}

// String implements fmt.Stringer.
func (t TimelineEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TimelineEventType.
func (t TimelineEventType) IsValid() bool {
	for _, candidate := range validTimelineEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTimelineEventType converts raw input into a TimelineEventType.
func ParseTimelineEventType(value string) (TimelineEventType, error) {
	for _, candidate := range validTimelineEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid timeline event type %q", value)
}

// IsUserLoggable reports whether users may append the event type directly.
// The remaining types are emitted only as side effects of other operations.
func (t TimelineEventType) IsUserLoggable() bool {
	switch t {
	case TimelineEventTypeChargeDisputed, TimelineEventTypeSupportContacted, TimelineEventTypeNoteAdded:
		return true
	default:
		return false
	}
}
