package subscriptions

import (
	"net/http"

	"github.com/cancelmem/cancelmem-backend/api/responses"
	"github.com/cancelmem/cancelmem-backend/api/validators"
	subsvc "github.com/cancelmem/cancelmem-backend/internal/subscriptions"
	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
)

// SubscriptionCancellation records a confirmed or attempted cancellation with
// optional proof documents.
func SubscriptionCancellation(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}
		userID, id, err := resolveTarget(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var input subsvc.CancellationInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, err := svc.RecordCancellation(ctx, userID, id, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toResponse(sub, now(), true))
	}
}

func SubscriptionReactivate(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}
		userID, id, err := resolveTarget(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var input subsvc.ReactivateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, err := svc.Reactivate(ctx, userID, id, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toResponse(sub, now(), true))
	}
}

func ProofCreate(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}
		userID, id, err := resolveTarget(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var input subsvc.ProofInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		input.Name = validators.SanitizeString(input.Name, 200)
		input.ConfirmationCode = validators.SanitizeOptional(input.ConfirmationCode, 200)

		sub, err := svc.AddProof(ctx, userID, id, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toResponse(sub, now(), true))
	}
}

func ProofDelete(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}
		userID, id, err := resolveTarget(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		proofID, err := validators.ParseUUIDParam(r, "proofId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, err := svc.DeleteProof(ctx, userID, id, proofID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toResponse(sub, now(), true))
	}
}

func TimelineCreate(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}
		userID, id, err := resolveTarget(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var input subsvc.TimelineInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, err := svc.AddTimelineEvent(ctx, userID, id, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toResponse(sub, now(), true))
	}
}
