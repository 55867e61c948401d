package subscriptions

import (
	"encoding/base64"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
)

// MaxProofPayloadBytes caps a decoded proof payload.
const MaxProofPayloadBytes = 5 << 20

var allowedProofMimes = map[enums.ProofDocumentType][]string{
	enums.ProofDocumentTypeScreenshot: {"image/png", "image/jpeg", "image/webp", "image/gif", "image/heic"},
	enums.ProofDocumentTypePDF:        {"application/pdf"},
	enums.ProofDocumentTypeEmail:      {"message/rfc822", "text/plain", "text/html", "application/pdf", "image/png", "image/jpeg"},
}

// sniffProofPayload decodes a base64 payload (optionally a data URL) and
// checks that its content matches the declared document type. It returns the
// detected MIME type.
func sniffProofPayload(docType enums.ProofDocumentType, payload string) (string, error) {
	raw := strings.TrimSpace(payload)
	if idx := strings.Index(raw, ","); strings.HasPrefix(raw, "data:") && idx > 0 {
		raw = raw[idx+1:]
	}
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "proof payload is empty")
	}
	if base64.StdEncoding.DecodedLen(len(raw)) > MaxProofPayloadBytes+3 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "proof payload exceeds 5MB")
	}

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "proof payload must be base64")
	}
	if len(data) > MaxProofPayloadBytes {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "proof payload exceeds 5MB")
	}

	detected := mimetype.Detect(data)
	allowed, restricted := allowedProofMimes[docType]
	if !restricted {
		return detected.String(), nil
	}
	for _, candidate := range allowed {
		if detected.Is(candidate) {
			return candidate, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "proof payload does not match document type").
		WithDetails(map[string]any{"type": docType, "detected_mime": detected.String()})
}
