package subscriptions

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cancelmem/cancelmem-backend/api/controllers/usercontext"
	"github.com/cancelmem/cancelmem-backend/api/middleware"
	"github.com/cancelmem/cancelmem-backend/api/responses"
	"github.com/cancelmem/cancelmem-backend/api/validators"
	"github.com/cancelmem/cancelmem-backend/internal/entitlements"
	subsvc "github.com/cancelmem/cancelmem-backend/internal/subscriptions"
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
)

// SubscriptionService describes the subscription store methods used by the HTTP controllers.
type SubscriptionService interface {
	Create(ctx context.Context, userID uuid.UUID, input subsvc.CreateInput) (*models.Subscription, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.Subscription, error)
	List(ctx context.Context, userID uuid.UUID, params subsvc.ListParams) ([]models.Subscription, error)
	Update(ctx context.Context, userID, id uuid.UUID, input subsvc.UpdateInput) (*models.Subscription, error)
	RecordCancellation(ctx context.Context, userID, id uuid.UUID, input subsvc.CancellationInput) (*models.Subscription, error)
	Reactivate(ctx context.Context, userID, id uuid.UUID, input subsvc.ReactivateInput) (*models.Subscription, error)
	AddProof(ctx context.Context, userID, id uuid.UUID, input subsvc.ProofInput) (*models.Subscription, error)
	DeleteProof(ctx context.Context, userID, id, proofID uuid.UUID) (*models.Subscription, error)
	AddTimelineEvent(ctx context.Context, userID, id uuid.UUID, input subsvc.TimelineInput) (*models.Subscription, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// EmailRecorder keeps the reminder address in sync with the token email.
type EmailRecorder interface {
	RememberEmail(ctx context.Context, identity entitlements.Identity) error
}

var sortFields = map[string]subsvc.SortField{
	"cancel_by": subsvc.SortCancelBy,
	"renewal":   subsvc.SortRenewal,
	"name":      subsvc.SortName,
	"monthly":   subsvc.SortMonthly,
	"created":   subsvc.SortCreated,
}

func now() time.Time {
	return time.Now().UTC()
}

func SubscriptionList(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}
		userID, err := usercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		params, err := parseListParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		asOf, err := validators.ParseAsOf(r, now())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		subs, err := svc.List(ctx, userID, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := subscriptionListResponse{Subscriptions: make([]subscriptionResponse, 0, len(subs)), Count: len(subs)}
		for i := range subs {
			out.Subscriptions = append(out.Subscriptions, toResponse(&subs[i], asOf, false))
		}
		responses.WriteSuccess(w, out)
	}
}

func SubscriptionCreate(svc SubscriptionService, emails EmailRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}
		userID, err := usercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var input subsvc.CreateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		input.Name = validators.SanitizeString(input.Name, 200)

		sub, err := svc.Create(ctx, userID, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rememberEmail(ctx, emails, userID, middleware.EmailFromContext(ctx), logg)
		responses.WriteSuccessStatus(w, http.StatusCreated, toResponse(sub, now(), true))
	}
}

func SubscriptionGet(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
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
		asOf, err := validators.ParseAsOf(r, now())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, err := svc.Get(ctx, userID, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toResponse(sub, asOf, true))
	}
}

func SubscriptionUpdate(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
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

		var input subsvc.UpdateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if input.Name != nil {
			name := validators.SanitizeString(*input.Name, 200)
			input.Name = &name
		}

		sub, err := svc.Update(ctx, userID, id, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toResponse(sub, now(), true))
	}
}

func SubscriptionDelete(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
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
		if err := svc.Delete(ctx, userID, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func resolveTarget(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	userID, err := usercontext.ResolveUserID(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := validators.ParseUUIDParam(r, "subscriptionId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return userID, id, nil
}

func parseListParams(r *http.Request) (subsvc.ListParams, error) {
	q := r.URL.Query()
	params := subsvc.ListParams{
		Search: validators.SanitizeString(q.Get("q"), 200),
		Sort:   subsvc.SortCancelBy,
		Desc:   strings.EqualFold(strings.TrimSpace(q.Get("order")), "desc"),
	}

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := enums.ParseSubscriptionStatus(raw)
		if err != nil {
			return params, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		params.Status = &status
	}
	if raw := strings.TrimSpace(q.Get("intent")); raw != "" {
		intent, err := enums.ParseIntent(raw)
		if err != nil {
			return params, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid intent")
		}
		params.Intent = &intent
	}
	if raw := strings.TrimSpace(q.Get("category")); raw != "" {
		category, err := enums.ParseCategory(raw)
		if err != nil {
			return params, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
		}
		params.Category = &category
	}
	if raw := strings.TrimSpace(q.Get("sort")); raw != "" {
		field, ok := sortFields[strings.ToLower(raw)]
		if !ok {
			return params, pkgerrors.New(pkgerrors.CodeValidation, "invalid sort").WithDetails(map[string]any{"field": "sort"})
		}
		params.Sort = field
	}
	return params, nil
}

func rememberEmail(ctx context.Context, emails EmailRecorder, userID uuid.UUID, email string, logg *logger.Logger) {
	if emails == nil || strings.TrimSpace(email) == "" {
		return
	}
	if err := emails.RememberEmail(ctx, entitlements.Identity{UserID: userID, Email: email}); err != nil && logg != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "subscriptions.remember_email_failed")
	}
}
