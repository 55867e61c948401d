package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/cancelmem/cancelmem-backend/internal/entitlements"
	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
)

type planSyncer interface {
	ActivateFromCheckout(ctx context.Context, completion entitlements.CheckoutCompletion) error
	SyncStripeSubscription(ctx context.Context, state entitlements.StripeSubscriptionState) error
}

type ServiceParams struct {
	Entitlements planSyncer
	Logger       *logger.Logger
}

// Service applies Stripe billing events to user plans.
type Service struct {
	entitlements planSyncer
	logg         *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Entitlements == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlement service required")
	}
	return &Service{entitlements: params.Entitlements, logg: params.Logger}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		return s.completeCheckout(ctx, &session)
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return s.entitlements.SyncStripeSubscription(ctx, stateFromSubscription(&stripeSub))
	default:
		if s.logg != nil {
			s.logg.Debug(s.logg.WithField(ctx, "stripe_event_type", string(event.Type)), "stripe event ignored")
		}
		return nil
	}
}

func (s *Service) completeCheckout(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.Mode != stripe.CheckoutSessionModeSubscription {
		return nil
	}
	ref := session.ClientReferenceID
	if ref == "" {
		ref = session.Metadata[entitlements.MetadataUserID]
	}
	userID, err := uuid.Parse(strings.TrimSpace(ref))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "checkout session has no valid user reference")
	}

	completion := entitlements.CheckoutCompletion{UserID: userID}
	if session.Customer != nil {
		completion.CustomerID = session.Customer.ID
	}
	if session.Subscription != nil {
		completion.SubscriptionID = session.Subscription.ID
	}
	if session.CustomerDetails != nil {
		completion.Email = session.CustomerDetails.Email
	}
	if completion.Email == "" {
		completion.Email = session.CustomerEmail
	}
	return s.entitlements.ActivateFromCheckout(ctx, completion)
}

func stateFromSubscription(sub *stripe.Subscription) entitlements.StripeSubscriptionState {
	state := entitlements.StripeSubscriptionState{
		SubscriptionID: sub.ID,
		Status:         sub.Status,
	}
	if sub.Customer != nil {
		state.CustomerID = sub.Customer.ID
	}
	if raw := sub.Metadata[entitlements.MetadataUserID]; raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			state.UserID = id
		}
	}
	if end := currentPeriodEnd(sub); end > 0 {
		t := time.Unix(end, 0).UTC()
		state.CurrentPeriodEnd = &t
	}
	return state
}

func currentPeriodEnd(sub *stripe.Subscription) int64 {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0] == nil {
		return 0
	}
	return sub.Items.Data[0].CurrentPeriodEnd
}
