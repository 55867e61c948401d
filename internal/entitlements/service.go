package entitlements

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/cancelmem/cancelmem-backend/pkg/config"
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
)

// MetadataUserID is the Stripe metadata key carrying the CancelMem user id.
const MetadataUserID = "cancelmem_user_id"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type subscriptionCounter interface {
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Identity is the authenticated caller as far as billing is concerned.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// Summary describes a user's plan for the billing screen.
type Summary struct {
	Plan              enums.Plan `json:"plan"`
	SubscriptionLimit *int       `json:"subscription_limit"`
	SubscriptionCount int64      `json:"subscription_count"`
	ExportsEnabled    bool       `json:"exports_enabled"`
	Status            *string    `json:"stripe_status,omitempty"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
}

// CheckoutCompletion is the outcome of a finished Stripe checkout.
type CheckoutCompletion struct {
	UserID         uuid.UUID
	Email          string
	CustomerID     string
	SubscriptionID string
}

// StripeSubscriptionState is the part of a Stripe subscription that decides the plan.
type StripeSubscriptionState struct {
	UserID           uuid.UUID
	CustomerID       string
	SubscriptionID   string
	Status           stripe.SubscriptionStatus
	CurrentPeriodEnd *time.Time
}

// Service resolves plan tiers and runs the upgrade flow.
type Service interface {
	PlanFor(ctx context.Context, userID uuid.UUID) (enums.Plan, error)
	Summary(ctx context.Context, userID uuid.UUID) (*Summary, error)
	CanAddSubscription(ctx context.Context, userID uuid.UUID, current int64) error
	SubscriptionCap(ctx context.Context, userID uuid.UUID) (func(current int64) error, error)
	RequirePro(ctx context.Context, userID uuid.UUID) error
	CreateCheckoutSession(ctx context.Context, identity Identity) (string, error)
	CreatePortalSession(ctx context.Context, userID uuid.UUID) (string, error)
	ActivateFromCheckout(ctx context.Context, completion CheckoutCompletion) error
	SyncStripeSubscription(ctx context.Context, state StripeSubscriptionState) error
	RememberEmail(ctx context.Context, identity Identity) error
	EmailFor(ctx context.Context, userID uuid.UUID) (string, error)
}

// ServiceParams groups dependencies for the entitlement service.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Counter           subscriptionCounter
	Stripe            StripeSessionClient
	Billing           config.BillingConfig
	StripeConfig      config.StripeConfig
	PublicURL         string
	Logger            *logger.Logger
	Now               func() time.Time
}

type service struct {
	repo      Repository
	txRunner  txRunner
	counter   subscriptionCounter
	stripe    StripeSessionClient
	freeLimit int
	stripeCfg config.StripeConfig
	publicURL string
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the entitlement service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("plan repo required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:      params.Repo,
		txRunner:  params.TransactionRunner,
		counter:   params.Counter,
		stripe:    params.Stripe,
		freeLimit: params.Billing.FreeSubscriptionLimit,
		stripeCfg: params.StripeConfig,
		publicURL: strings.TrimRight(params.PublicURL, "/"),
		logg:      params.Logger,
		now:       now,
	}, nil
}

func (s *service) PlanFor(ctx context.Context, userID uuid.UUID) (enums.Plan, error) {
	plan, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
	}
	if plan == nil {
		return enums.PlanFree, nil
	}
	return plan.Plan, nil
}

func (s *service) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	stored, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
	}
	summary := &Summary{Plan: enums.PlanFree}
	if stored != nil {
		summary.Plan = stored.Plan
		summary.Status = stored.StripeSubscriptionStatus
		summary.CurrentPeriodEnd = stored.CurrentPeriodEnd
	}
	if summary.Plan == enums.PlanPro {
		summary.ExportsEnabled = true
	} else if limit, limited := s.limit(); limited {
		summary.SubscriptionLimit = &limit
	}
	if s.counter != nil {
		count, err := s.counter.CountByUser(ctx, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count subscriptions")
		}
		summary.SubscriptionCount = count
	}
	return summary, nil
}

// CanAddSubscription fails with PLAN_LIMIT_REACHED when a free user already
// tracks the maximum number of subscriptions.
func (s *service) CanAddSubscription(ctx context.Context, userID uuid.UUID, current int64) error {
	check, err := s.SubscriptionCap(ctx, userID)
	if err != nil {
		return err
	}
	return check(current)
}

// SubscriptionCap resolves the user's plan once and returns the check for a
// subscription count, so the count can be taken inside the caller's
// transaction.
func (s *service) SubscriptionCap(ctx context.Context, userID uuid.UUID) (func(current int64) error, error) {
	plan, err := s.PlanFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	limit, limited := s.limit()
	return func(current int64) error {
		if plan == enums.PlanPro || !limited || current < int64(limit) {
			return nil
		}
		return pkgerrors.Newf(pkgerrors.CodePlanLimit, "the free plan tracks up to %d subscriptions", limit).
			WithDetails(map[string]any{"plan": plan, "limit": limit, "current": current})
	}, nil
}

func (s *service) RequirePro(ctx context.Context, userID uuid.UUID) error {
	plan, err := s.PlanFor(ctx, userID)
	if err != nil {
		return err
	}
	if plan != enums.PlanPro {
		return pkgerrors.New(pkgerrors.CodePlanRequired, "this feature requires the pro plan")
	}
	return nil
}

func (s *service) CreateCheckoutSession(ctx context.Context, identity Identity) (string, error) {
	if s.stripe == nil || strings.TrimSpace(s.stripeCfg.ProPriceID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "billing is not configured")
	}
	stored, err := s.repo.FindByUserID(ctx, identity.UserID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
	}
	if stored != nil && stored.Plan == enums.PlanPro {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "already on the pro plan")
	}

	userID := identity.UserID.String()
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(s.stripeCfg.ProPriceID),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(s.url(s.stripeCfg.SuccessPath)),
		CancelURL:         stripe.String(s.url(s.stripeCfg.CancelPath)),
		ClientReferenceID: stripe.String(userID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{MetadataUserID: userID},
		},
	}
	params.AddMetadata(MetadataUserID, userID)
	switch {
	case stored != nil && stored.StripeCustomerID != nil:
		params.Customer = stored.StripeCustomerID
	case strings.TrimSpace(identity.Email) != "":
		params.CustomerEmail = stripe.String(identity.Email)
	}

	session, err := s.stripe.NewCheckoutSession(ctx, params)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return session.URL, nil
}

func (s *service) CreatePortalSession(ctx context.Context, userID uuid.UUID) (string, error) {
	if s.stripe == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "billing is not configured")
	}
	stored, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
	}
	if stored == nil || stored.StripeCustomerID == nil {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "no billing account exists yet")
	}
	session, err := s.stripe.NewPortalSession(ctx, &stripe.BillingPortalSessionParams{
		Customer:  stored.StripeCustomerID,
		ReturnURL: stripe.String(s.url(s.stripeCfg.PortalReturnPath)),
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create portal session")
	}
	return session.URL, nil
}

func (s *service) ActivateFromCheckout(ctx context.Context, completion CheckoutCompletion) error {
	if completion.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout is missing the user reference")
	}
	now := s.now()
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		plan, err := repo.FindByUserID(ctx, completion.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
		}
		if plan == nil {
			plan = &models.UserPlan{UserID: completion.UserID, CreatedAt: now}
		}
		plan.Plan = enums.PlanPro
		plan.StripeCustomerID = optional(completion.CustomerID, plan.StripeCustomerID)
		plan.StripeSubscriptionID = optional(completion.SubscriptionID, plan.StripeSubscriptionID)
		plan.StripeSubscriptionStatus = stripe.String(string(stripe.SubscriptionStatusActive))
		plan.Email = optional(completion.Email, plan.Email)
		plan.UpdatedAt = now
		if err := repo.Save(ctx, plan); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save plan")
		}
		return nil
	})
}

// SyncStripeSubscription mirrors a Stripe subscription onto the user's plan.
// Pro is granted while the subscription is active or trialing. Events for a
// subscription the user has already replaced are ignored unless they would
// grant pro.
func (s *service) SyncStripeSubscription(ctx context.Context, state StripeSubscriptionState) error {
	if state.CustomerID == "" && state.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription has no customer or user reference")
	}
	now := s.now()
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		plan, err := s.locate(ctx, repo, state)
		if err != nil {
			return err
		}
		if plan == nil {
			if state.UserID == uuid.Nil {
				if s.logg != nil {
					s.logg.Warn(s.logg.WithField(ctx, "stripe_customer_id", state.CustomerID), "stripe subscription for unknown customer ignored")
				}
				return nil
			}
			plan = &models.UserPlan{UserID: state.UserID, Plan: enums.PlanFree, CreatedAt: now}
		}

		entitled := grantsPro(state.Status)
		if plan.StripeSubscriptionID != nil && *plan.StripeSubscriptionID != state.SubscriptionID && !entitled {
			return nil
		}

		if entitled {
			plan.Plan = enums.PlanPro
		} else {
			plan.Plan = enums.PlanFree
		}
		plan.StripeCustomerID = optional(state.CustomerID, plan.StripeCustomerID)
		plan.StripeSubscriptionID = optional(state.SubscriptionID, plan.StripeSubscriptionID)
		plan.StripeSubscriptionStatus = stripe.String(string(state.Status))
		plan.CurrentPeriodEnd = state.CurrentPeriodEnd
		plan.UpdatedAt = now
		if err := repo.Save(ctx, plan); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save plan")
		}
		return nil
	})
}

// RememberEmail stores the caller's address for reminder delivery. It writes
// only when the address is new or changed.
func (s *service) RememberEmail(ctx context.Context, identity Identity) error {
	email := strings.TrimSpace(identity.Email)
	if identity.UserID == uuid.Nil || email == "" {
		return nil
	}
	now := s.now()
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		plan, err := repo.FindByUserID(ctx, identity.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
		}
		if plan != nil && plan.Email != nil && *plan.Email == email {
			return nil
		}
		if plan == nil {
			plan = &models.UserPlan{UserID: identity.UserID, Plan: enums.PlanFree, CreatedAt: now}
		}
		plan.Email = &email
		plan.UpdatedAt = now
		if err := repo.Save(ctx, plan); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save plan")
		}
		return nil
	})
}

// EmailFor returns the remembered address, or an empty string.
func (s *service) EmailFor(ctx context.Context, userID uuid.UUID) (string, error) {
	plan, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
	}
	if plan == nil || plan.Email == nil {
		return "", nil
	}
	return *plan.Email, nil
}

func (s *service) locate(ctx context.Context, repo Repository, state StripeSubscriptionState) (*models.UserPlan, error) {
	if state.CustomerID != "" {
		plan, err := repo.FindByStripeCustomerID(ctx, state.CustomerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan by customer")
		}
		if plan != nil {
			return plan, nil
		}
	}
	if state.UserID == uuid.Nil {
		return nil, nil
	}
	plan, err := repo.FindByUserID(ctx, state.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
	}
	return plan, nil
}

func (s *service) limit() (int, bool) {
	if s.freeLimit <= 0 {
		return 0, false
	}
	return s.freeLimit, true
}

func (s *service) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.publicURL + path
}

func grantsPro(status stripe.SubscriptionStatus) bool {
	return status == stripe.SubscriptionStatusActive || status == stripe.SubscriptionStatusTrialing
}

func optional(value string, fallback *string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return &value
}
