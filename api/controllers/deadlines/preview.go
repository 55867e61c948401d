package deadlines

import (
	"net/http"
	"time"

	"github.com/cancelmem/cancelmem-backend/api/responses"
	"github.com/cancelmem/cancelmem-backend/api/validators"
	"github.com/cancelmem/cancelmem-backend/internal/deadline"
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

type previewRequest struct {
	RenewalDate        string  `json:"renewal_date" validate:"required,date"`
	Intent             string  `json:"intent" validate:"required"`
	CancelByRule       *string `json:"cancel_by_rule,omitempty"`
	CustomCancelByDate *string `json:"custom_cancel_by_date,omitempty" validate:"omitempty,date"`
}

type previewResponse struct {
	Rule         enums.CancelByRule `json:"cancel_by_rule"`
	CancelByDate types.Date         `json:"cancel_by_date"`
	Reminders    models.Reminders   `json:"reminders"`
	DaysUntil    int                `json:"days_until"`
	HasDeadline  bool               `json:"has_deadline"`
}

// Preview answers the subscription form's live deadline preview. It is a pure
// computation and touches no storage.
func Preview(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req previewRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		asOf, err := validators.ParseAsOf(r, time.Now().UTC())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		renewal, err := types.ParseDate(req.RenewalDate)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid renewal_date"))
			return
		}
		intent, err := enums.ParseIntent(req.Intent)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid intent"))
			return
		}

		var rule enums.CancelByRule
		if req.CancelByRule != nil && *req.CancelByRule != "" {
			rule, err = enums.ParseCancelByRule(*req.CancelByRule)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cancel_by_rule"))
				return
			}
		}

		var custom *types.Date
		if req.CustomCancelByDate != nil && *req.CustomCancelByDate != "" {
			d, err := types.ParseDate(*req.CustomCancelByDate)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid custom_cancel_by_date"))
				return
			}
			custom = &d
		}
		if rule == enums.CancelByRuleCustom && custom == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "custom_cancel_by_date is required for the custom rule").
				WithDetails(map[string]string{"custom_cancel_by_date": "is required"}))
			return
		}

		preview := deadline.BuildPreview(renewal, intent, rule, custom, asOf)
		out := previewResponse{
			Rule:         preview.Rule,
			CancelByDate: preview.CancelByDate,
			Reminders:    preview.Reminders,
			DaysUntil:    preview.DaysUntil,
			HasDeadline:  preview.HasDeadline,
		}
		responses.WriteSuccess(w, out)
	}
}
