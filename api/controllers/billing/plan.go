package billing

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/cancelmem/cancelmem-backend/api/controllers/usercontext"
	"github.com/cancelmem/cancelmem-backend/api/middleware"
	"github.com/cancelmem/cancelmem-backend/api/responses"
	"github.com/cancelmem/cancelmem-backend/internal/entitlements"
	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
)

// PlanService describes the entitlement methods used by the billing controllers.
type PlanService interface {
	Summary(ctx context.Context, userID uuid.UUID) (*entitlements.Summary, error)
	CreateCheckoutSession(ctx context.Context, identity entitlements.Identity) (string, error)
	CreatePortalSession(ctx context.Context, userID uuid.UUID) (string, error)
}

type sessionResponse struct {
	URL string `json:"url"`
}

func PlanGet(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}
		userID, err := usercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		summary, err := svc.Summary(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// Checkout starts a Stripe Checkout session for the pro plan.
func Checkout(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}
		userID, err := usercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		url, err := svc.CreateCheckoutSession(ctx, entitlements.Identity{
			UserID: userID,
			Email:  middleware.EmailFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sessionResponse{URL: url})
	}
}

// Portal opens the Stripe customer portal for an existing customer.
func Portal(svc PlanService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}
		userID, err := usercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		url, err := svc.CreatePortalSession(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sessionResponse{URL: url})
	}
}
