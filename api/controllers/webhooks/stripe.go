package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/cancelmem/cancelmem-backend/api/responses"
	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
)

// Stripe caps event payloads well below this.
const maxWebhookBody = 64 << 10

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

// environmentReporter is satisfied by the Stripe client; events from the
// other mode (test vs live) are acknowledged and dropped.
type environmentReporter interface {
	Environment() string
}

type ack struct {
	Received bool   `json:"received"`
	Skipped  string `json:"skipped,omitempty"`
}

// StripeWebhook verifies plan upgrade and downgrade events and hands them to
// the entitlement service. Each event id is applied once; a failure releases
// the guard so Stripe's retry is processed.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || client == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "billing webhooks are not configured"))
			return
		}

		sigHeader := strings.TrimSpace(r.Header.Get("Stripe-Signature"))
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read webhook body"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stripe signature"))
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"stripe_event_id":   event.ID,
				"stripe_event_type": string(event.Type),
			})
		}

		if reporter, ok := client.(environmentReporter); ok {
			if live := reporter.Environment() == "live"; event.Livemode != live {
				logInfo(ctx, logg, "stripe.webhook.mode_mismatch")
				responses.WriteSuccess(w, ack{Received: true, Skipped: "mode_mismatch"})
				return
			}
		}

		seen, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook idempotency"))
			return
		}
		if seen {
			logInfo(ctx, logg, "stripe.webhook.duplicate")
			responses.WriteSuccess(w, ack{Received: true, Skipped: "duplicate"})
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if relErr := guard.Delete(ctx, event.ID); relErr != nil && logg != nil {
				logg.Error(ctx, "stripe.webhook.release_failed", relErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		logInfo(ctx, logg, "stripe.webhook.processed")
		responses.WriteSuccess(w, ack{Received: true})
	}
}

func logInfo(ctx context.Context, logg *logger.Logger, msg string) {
	if logg != nil {
		logg.Info(ctx, msg)
	}
}
