package enums

import "fmt"

// ProofStatus is the derived classification of cancellation evidence.
type ProofStatus string

const (
	ProofStatusNotRequired ProofStatus = "not-required"
	ProofStatusMissing     ProofStatus = "missing"
	ProofStatusIncomplete  ProofStatus = "incomplete"
	ProofStatusComplete    ProofStatus = "complete"
)

var validProofStatuses = []ProofStatus{
	ProofStatusNotRequired,
	ProofStatusMissing,
	ProofStatusIncomplete,
	ProofStatusComplete,
}

// String implements fmt.Stringer.
func (p ProofStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProofStatus.
func (p ProofStatus) IsValid() bool {
	for _, candidate := range validProofStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProofStatus converts raw input into a ProofStatus.
func ParseProofStatus(value string) (ProofStatus, error) {
	for _, candidate := range validProofStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid proof status %q", value)
}
