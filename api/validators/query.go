package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryDate reads an optional YYYY-MM-DD parameter. ok is false when the
// parameter is absent.
func ParseQueryDate(r *http.Request, key string) (types.Date, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return types.Date{}, false, nil
	}
	d, err := types.ParseDate(raw)
	if err != nil {
		return types.Date{}, false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "query parameter must be a date").WithDetails(map[string]any{"field": key})
	}
	return d, true, nil
}

// ParseAsOf resolves the reference instant for date-relative reads. An
// explicit as_of date pins the day; otherwise now is used.
func ParseAsOf(r *http.Request, now time.Time) (time.Time, error) {
	d, ok, err := ParseQueryDate(r, "as_of")
	if err != nil || !ok {
		return now, err
	}
	return d.Midnight(now.Location()), nil
}

// ParseUUIDParam reads a chi URL parameter as a uuid.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier").WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

// QueryValues returns the sanitized, comma-split values of a repeated or
// comma-separated parameter.
func QueryValues(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, part := range strings.Split(raw, ",") {
			if v := SanitizeString(part, 64); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
