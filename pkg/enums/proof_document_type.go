package enums

import "fmt"

// ProofDocumentType classifies a piece of cancellation evidence.
type ProofDocumentType string

const (
	ProofDocumentTypeScreenshot         ProofDocumentType = "screenshot"
	ProofDocumentTypeEmail              ProofDocumentType = "email"
	ProofDocumentTypePDF                ProofDocumentType = "pdf"
	ProofDocumentTypeConfirmationNumber ProofDocumentType = "confirmation-number"
	ProofDocumentTypeOther              ProofDocumentType = "other"
)

var validProofDocumentTypes = []ProofDocumentType{
	ProofDocumentTypeScreenshot,
	ProofDocumentTypeEmail,
	ProofDocumentTypePDF,
	ProofDocumentTypeConfirmationNumber,
	ProofDocumentTypeOther,
}

// String implements fmt.Stringer.
func (p ProofDocumentType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProofDocumentType.
func (p ProofDocumentType) IsValid() bool {
	for _, candidate := range validProofDocumentTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProofDocumentType converts raw input into a ProofDocumentType.
func ParseProofDocumentType(value string) (ProofDocumentType, error) {
	for _, candidate := range validProofDocumentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid proof document type %q", value)
}

// IsSubstantive reports whether the document type counts as first-class
// evidence. Confirmation numbers and free-form documents do not.
func (p ProofDocumentType) IsSubstantive() bool {
	switch p {
	case ProofDocumentTypeScreenshot, ProofDocumentTypeEmail, ProofDocumentTypePDF:
		return true
	default:
		return false
	}
}
