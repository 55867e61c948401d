package exports

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cancelmem/cancelmem-backend/api/controllers/usercontext"
	"github.com/cancelmem/cancelmem-backend/api/responses"
	"github.com/cancelmem/cancelmem-backend/api/validators"
	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
)

const (
	contentTypeCSV      = "text/csv; charset=utf-8"
	contentTypeCalendar = "text/calendar; charset=utf-8"
)

// ExportService renders the pro-only exports.
type ExportService interface {
	SubscriptionsCSV(ctx context.Context, userID uuid.UUID, w io.Writer) error
	AuditCSV(ctx context.Context, userID, id uuid.UUID, w io.Writer) error
	Deadlines(ctx context.Context, userID uuid.UUID, w io.Writer) error
}

func SubscriptionsCSV(svc ExportService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := begin(w, r, svc, logg)
		if !ok {
			return
		}
		filename := fmt.Sprintf("cancelmem-subscriptions-%s.csv", time.Now().UTC().Format("2006-01-02"))
		render(w, r, logg, contentTypeCSV, filename, func(buf io.Writer) error {
			return svc.SubscriptionsCSV(r.Context(), userID, buf)
		})
	}
}

func AuditCSV(svc ExportService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := begin(w, r, svc, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filename := fmt.Sprintf("cancelmem-audit-%s.csv", id)
		render(w, r, logg, contentTypeCSV, filename, func(buf io.Writer) error {
			return svc.AuditCSV(r.Context(), userID, id, buf)
		})
	}
}

func DeadlinesICS(svc ExportService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := begin(w, r, svc, logg)
		if !ok {
			return
		}
		render(w, r, logg, contentTypeCalendar, "cancelmem-deadlines.ics", func(buf io.Writer) error {
			return svc.Deadlines(r.Context(), userID, buf)
		})
	}
}

func begin(w http.ResponseWriter, r *http.Request, svc ExportService, logg *logger.Logger) (uuid.UUID, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "export service unavailable"))
		return uuid.Nil, false
	}
	userID, err := usercontext.ResolveUserID(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return uuid.Nil, false
	}
	return userID, true
}

// render buffers the export so a failure part-way still yields a JSON error
// instead of a truncated download.
func render(w http.ResponseWriter, r *http.Request, logg *logger.Logger, contentType, filename string, fn func(io.Writer) error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteAttachment(w, contentType, filename)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
