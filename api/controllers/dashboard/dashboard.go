package dashboard

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cancelmem/cancelmem-backend/api/controllers/usercontext"
	"github.com/cancelmem/cancelmem-backend/api/responses"
	"github.com/cancelmem/cancelmem-backend/api/validators"
	dashsvc "github.com/cancelmem/cancelmem-backend/internal/dashboard"
	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
)

type OverviewService interface {
	Overview(ctx context.Context, userID uuid.UUID, asOf time.Time) (*dashsvc.Overview, error)
}

// Overview serves the dashboard buckets, savings and spend. The optional tz
// parameter (IANA name) decides which calendar day counts as today.
func Overview(svc OverviewService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard service unavailable"))
			return
		}
		userID, err := usercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		loc := time.UTC
		if tz := strings.TrimSpace(r.URL.Query().Get("tz")); tz != "" {
			parsed, err := time.LoadLocation(tz)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tz").WithDetails(map[string]any{"field": "tz"}))
				return
			}
			loc = parsed
		}
		asOf, err := validators.ParseAsOf(r, time.Now().In(loc))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		overview, err := svc.Overview(ctx, userID, asOf)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, overview)
	}
}
