package subscriptions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/cancelmem/cancelmem-backend/internal/deadline"
	"github.com/cancelmem/cancelmem-backend/internal/reporting"
	"github.com/cancelmem/cancelmem-backend/pkg/db"
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
	"github.com/cancelmem/cancelmem-backend/pkg/pagination"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

const defaultCurrency = "USD"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// planLimiter enforces the pricing tier's subscription cap. The returned
// check runs against a count taken inside the create transaction.
type planLimiter interface {
	SubscriptionCap(ctx context.Context, userID uuid.UUID) (func(current int64) error, error)
}

// Service is the subscription store. Every write recomputes derived fields
// and appends timeline events in the same transaction.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.Subscription, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.Subscription, error)
	List(ctx context.Context, userID uuid.UUID, params ListParams) ([]models.Subscription, error)
	Update(ctx context.Context, userID, id uuid.UUID, input UpdateInput) (*models.Subscription, error)
	RecordCancellation(ctx context.Context, userID, id uuid.UUID, input CancellationInput) (*models.Subscription, error)
	Reactivate(ctx context.Context, userID, id uuid.UUID, input ReactivateInput) (*models.Subscription, error)
	AddProof(ctx context.Context, userID, id uuid.UUID, input ProofInput) (*models.Subscription, error)
	DeleteProof(ctx context.Context, userID, id, proofID uuid.UUID) (*models.Subscription, error)
	AddTimelineEvent(ctx context.Context, userID, id uuid.UUID, input TimelineInput) (*models.Subscription, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	RecomputeAll(ctx context.Context, batchSize int) (RecomputeResult, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Limiter           planLimiter
	Logger            *logger.Logger
	Now               func() time.Time
}

type service struct {
	repo     Repository
	txRunner txRunner
	limiter  planLimiter
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repo required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     params.Repo,
		txRunner: params.TransactionRunner,
		limiter:  params.Limiter,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}
	now := s.now()
	sub, err := buildSubscription(userID, input, now)
	if err != nil {
		return nil, err
	}

	var withinCap func(current int64) error
	if s.limiter != nil {
		if withinCap, err = s.limiter.SubscriptionCap(ctx, userID); err != nil {
			return nil, err
		}
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if withinCap != nil {
			if err := repo.LockUser(ctx, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock user subscriptions")
			}
			count, err := repo.CountByUser(ctx, userID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count subscriptions")
			}
			if err := withinCap(count); err != nil {
				return err
			}
		}
		Recompute(sub)
		if err := repo.Create(ctx, sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create subscription")
		}

		tl := newTimeline(sub, now)
		tl.add(enums.TimelineEventTypeCreated, fmt.Sprintf("Started tracking %s", sub.Name), nil, nil)
		if sub.Reminders.Any() {
			tl.add(enums.TimelineEventTypeReminderSet, describeReminders(sub.Reminders), nil, nil)
		}
		return appendTimeline(ctx, repo, tl)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return sub, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params ListParams) ([]models.Subscription, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if params.Intent != nil && !params.Intent.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid intent filter")
	}
	if params.Category != nil && !params.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid category filter")
	}

	subs, err := s.repo.List(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list subscriptions")
	}
	if params.Sort == SortMonthly {
		sort.SliceStable(subs, func(i, j int) bool {
			a := reporting.MonthlyEquivalent(subs[i].Amount, subs[i].BillingPeriod)
			b := reporting.MonthlyEquivalent(subs[j].Amount, subs[j].BillingPeriod)
			if params.Desc {
				return a.GreaterThan(b)
			}
			return a.LessThan(b)
		})
	}
	return subs, nil
}

func (s *service) Update(ctx context.Context, userID, id uuid.UUID, input UpdateInput) (*models.Subscription, error) {
	return s.mutate(ctx, userID, id, func(sub *models.Subscription, tl *timelineBuilder, _ Repository) error {
		before := *sub
		if err := applyUpdate(sub, input); err != nil {
			return err
		}
		Recompute(sub)

		if before.Intent != sub.Intent {
			tl.add(enums.TimelineEventTypeNoteAdded, fmt.Sprintf("Intent changed from %s to %s", before.Intent, sub.Intent), nil, nil)
		}
		if !before.RenewalDate.Equal(sub.RenewalDate) {
			tl.add(enums.TimelineEventTypeNoteAdded, describeDateChange("Renewal date", &before.RenewalDate, &sub.RenewalDate), nil, nil)
		}
		if !sameDate(before.TrialEndDate, sub.TrialEndDate) {
			tl.add(enums.TimelineEventTypeNoteAdded, describeDateChange("Trial end date", before.TrialEndDate, sub.TrialEndDate), nil, nil)
		}
		if !before.CancelByDate.Equal(sub.CancelByDate) {
			tl.add(enums.TimelineEventTypeNoteAdded, describeCancelByChange(before.CancelByDate, sub.CancelByDate), nil, nil)
		}
		if before.Reminders != sub.Reminders {
			tl.add(enums.TimelineEventTypeReminderSet, describeReminders(sub.Reminders), nil, nil)
		}
		return nil
	})
}

func (s *service) RecordCancellation(ctx context.Context, userID, id uuid.UUID, input CancellationInput) (*models.Subscription, error) {
	if !input.Status.IsCancellation() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be cancelled or cancel-attempted")
	}
	return s.mutate(ctx, userID, id, func(sub *models.Subscription, tl *timelineBuilder, repo Repository) error {
		if sub.Status == enums.SubscriptionStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is already cancelled")
		}
		if sub.Status == input.Status {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancellation attempt already recorded")
		}

		date := types.DateOf(tl.now)
		if input.Date != nil && !input.Date.IsZero() {
			date = *input.Date
		}

		sub.Status = input.Status
		if input.Status == enums.SubscriptionStatusCancelled {
			sub.CancellationDate = &date
			tl.add(enums.TimelineEventTypeCancellationConfirmed, fmt.Sprintf("Cancellation confirmed on %s", date), input.Notes, nil)
		} else {
			sub.CancelAttemptDate = &date
			tl.add(enums.TimelineEventTypeCancellationAttempted, fmt.Sprintf("Cancellation attempted on %s", date), input.Notes, nil)
		}

		for _, p := range input.Proofs {
			if _, err := attachProof(ctx, repo, sub, tl, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *service) Reactivate(ctx context.Context, userID, id uuid.UUID, input ReactivateInput) (*models.Subscription, error) {
	if !input.Status.IsLive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be active or trial")
	}
	return s.mutate(ctx, userID, id, func(sub *models.Subscription, tl *timelineBuilder, _ Repository) error {
		if !sub.Status.IsCancellation() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is not cancelled")
		}
		previous := sub.Status
		sub.Status = input.Status
		sub.CancellationDate = nil
		sub.CancelAttemptDate = nil
		if input.RenewalDate != nil {
			if input.RenewalDate.IsZero() {
				return pkgerrors.New(pkgerrors.CodeValidation, "renewal_date is invalid")
			}
			sub.RenewalDate = *input.RenewalDate
		}
		if input.TrialEndDate != nil {
			sub.TrialEndDate = input.TrialEndDate
		}
		tl.add(enums.TimelineEventTypeStatusChanged, fmt.Sprintf("Status changed from %s to %s", previous, sub.Status), input.Notes, nil)
		return nil
	})
}

func (s *service) AddProof(ctx context.Context, userID, id uuid.UUID, input ProofInput) (*models.Subscription, error) {
	return s.mutate(ctx, userID, id, func(sub *models.Subscription, tl *timelineBuilder, repo Repository) error {
		if _, err := attachProof(ctx, repo, sub, tl, input); err != nil {
			return err
		}
		return nil
	})
}

func (s *service) DeleteProof(ctx context.Context, userID, id, proofID uuid.UUID) (*models.Subscription, error) {
	return s.mutate(ctx, userID, id, func(sub *models.Subscription, tl *timelineBuilder, repo Repository) error {
		idx := -1
		for i := range sub.ProofDocuments {
			if sub.ProofDocuments[i].ID == proofID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "proof document not found")
		}
		removed := sub.ProofDocuments[idx]
		ok, err := repo.DeleteProofDocument(ctx, sub.ID, proofID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete proof document")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "proof document not found")
		}
		sub.ProofDocuments = append(sub.ProofDocuments[:idx], sub.ProofDocuments[idx+1:]...)
		tl.add(enums.TimelineEventTypeNoteAdded, fmt.Sprintf("Removed proof document %q", removed.Name), nil, &removed.ID)
		return nil
	})
}

func (s *service) AddTimelineEvent(ctx context.Context, userID, id uuid.UUID, input TimelineInput) (*models.Subscription, error) {
	if !input.Type.IsUserLoggable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event type cannot be logged directly").
			WithDetails(map[string]any{"type": input.Type})
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	}
	return s.mutate(ctx, userID, id, func(sub *models.Subscription, tl *timelineBuilder, _ Repository) error {
		if input.ProofID != nil && !hasProof(sub, *input.ProofID) {
			return pkgerrors.New(pkgerrors.CodeValidation, "proof_id does not reference a proof document of this subscription")
		}
		tl.add(input.Type, description, input.Notes, input.ProofID)
		return nil
	})
}

func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).Delete(ctx, userID, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete subscription")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil
	})
}

// RecomputeResult summarizes a RecomputeAll pass.
type RecomputeResult struct {
	Scanned  int
	Repaired int
	Invalid  int
}

// RecomputeAll walks every stored subscription and rewrites derived fields
// that drifted from their sources. Rows carrying enum values this version
// does not know are counted and skipped.
func (s *service) RecomputeAll(ctx context.Context, batchSize int) (RecomputeResult, error) {
	var (
		result RecomputeResult
		errs   error
	)
	err := pagination.Walk(ctx, batchSize, s.repo.ListPage, subscriptionCursor, func(sub *models.Subscription) {
		result.Scanned++
		if !knownEnums(sub) {
			result.Invalid++
			if s.logg != nil {
				s.logg.Warn(s.logg.WithSubscriptionID(ctx, sub.ID.String()), "subscription has unknown enum values; skipped")
			}
			return
		}
		if !Drifted(sub) {
			return
		}
		Recompute(sub)
		if err := s.repo.UpdateDerived(ctx, sub); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("subscription %s: %w", sub.ID, err))
			return
		}
		result.Repaired++
	})
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list subscriptions: %w", err))
	}
	return result, errs
}

// mutate loads the subscription inside a transaction, applies fn, bumps
// updatedAt and persists the row together with any timeline events fn added.
func (s *service) mutate(ctx context.Context, userID, id uuid.UUID, fn func(sub *models.Subscription, tl *timelineBuilder, repo Repository) error) (*models.Subscription, error) {
	now := s.now()
	var out *models.Subscription
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sub, err := repo.FindByID(ctx, userID, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
		}
		if sub == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}

		tl := newTimeline(sub, now)
		if err := fn(sub, tl, repo); err != nil {
			return err
		}

		Recompute(sub)
		sub.UpdatedAt = now
		if err := repo.Save(ctx, sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save subscription")
		}
		if err := appendTimeline(ctx, repo, tl); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func appendTimeline(ctx context.Context, repo Repository, tl *timelineBuilder) error {
	if tl.empty() {
		return nil
	}
	if err := repo.AppendTimeline(ctx, tl.flush()); err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "subscription was modified concurrently; retry")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append timeline")
	}
	return nil
}

func attachProof(ctx context.Context, repo Repository, sub *models.Subscription, tl *timelineBuilder, input ProofInput) (*models.ProofDocument, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "proof name is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid proof document type")
	}
	if input.Type == enums.ProofDocumentTypeConfirmationNumber && blank(input.ConfirmationCode) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "confirmation_code is required for confirmation-number proofs")
	}

	doc := models.ProofDocument{
		ID:               uuid.New(),
		SubscriptionID:   sub.ID,
		Name:             name,
		Type:             input.Type,
		RecordedAt:       tl.now,
		Notes:            input.Notes,
		ConfirmationCode: trimmed(input.ConfirmationCode),
		Position:         nextPosition(sub),
	}
	if !blank(input.Payload) {
		mime, err := sniffProofPayload(input.Type, *input.Payload)
		if err != nil {
			return nil, err
		}
		doc.Payload = input.Payload
		doc.MimeType = &mime
	}

	if err := repo.CreateProofDocument(ctx, &doc); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create proof document")
	}
	sub.ProofDocuments = append(sub.ProofDocuments, doc)
	tl.add(enums.TimelineEventTypeProofAdded, fmt.Sprintf("Added %s proof %q", doc.Type, doc.Name), nil, &doc.ID)
	return &doc, nil
}

func buildSubscription(userID uuid.UUID, input CreateInput, now time.Time) (*models.Subscription, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	if input.RenewalDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "renewal_date is required")
	}
	if !input.BillingPeriod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid billing_period")
	}
	if !input.Intent.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid intent")
	}
	if input.Category != nil && !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
	}

	status := input.Status
	if status == "" {
		status = enums.SubscriptionStatusActive
	}
	if !status.IsLive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "new subscriptions must be active or trial")
	}

	method := enums.CancellationMethodOnline
	if input.CancellationMethod != nil {
		if !input.CancellationMethod.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cancellation_method")
		}
		method = *input.CancellationMethod
	}

	currency, err := normalizeCurrency(input.Currency)
	if err != nil {
		return nil, err
	}

	sub := &models.Subscription{
		ID:                 uuid.New(),
		UserID:             userID,
		Name:               name,
		Amount:             input.Amount,
		Currency:           currency,
		RenewalDate:        input.RenewalDate,
		BillingPeriod:      input.BillingPeriod,
		Category:           input.Category,
		CancelByNotes:      trimmed(input.CancelByNotes),
		CancellationMethod: method,
		CancellationURL:    trimmed(input.CancellationURL),
		CancellationSteps:  trimmed(input.CancellationSteps),
		RequiredInfo:       trimmed(input.RequiredInfo),
		SupportContact:     trimmed(input.SupportContact),
		Status:             status,
		TrialEndDate:       input.TrialEndDate,
		Notes:              trimmed(input.Notes),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	deadline.ApplyIntent(sub, input.Intent)
	if input.CancelByRule != nil {
		if err := setRule(sub, *input.CancelByRule, input.CustomCancelByDate); err != nil {
			return nil, err
		}
	}
	if input.Reminders != nil {
		sub.Reminders = *input.Reminders
	}
	return sub, nil
}

func applyUpdate(sub *models.Subscription, input UpdateInput) error {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		sub.Name = name
	}
	if input.Amount != nil {
		if input.Amount.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
		}
		sub.Amount = *input.Amount
	}
	if input.Currency != nil {
		currency, err := normalizeCurrency(*input.Currency)
		if err != nil {
			return err
		}
		sub.Currency = currency
	}
	if input.RenewalDate != nil {
		if input.RenewalDate.IsZero() {
			return pkgerrors.New(pkgerrors.CodeValidation, "renewal_date is invalid")
		}
		sub.RenewalDate = *input.RenewalDate
	}
	if input.BillingPeriod != nil {
		if !input.BillingPeriod.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid billing_period")
		}
		sub.BillingPeriod = *input.BillingPeriod
	}
	if input.Category != nil {
		if !input.Category.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
		}
		sub.Category = input.Category
	}
	if input.Intent != nil && *input.Intent != sub.Intent {
		if !input.Intent.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid intent")
		}
		deadline.ApplyIntent(sub, *input.Intent)
	}
	if input.CancelByRule != nil {
		custom := input.CustomCancelByDate
		if custom == nil && sub.CancelByRule == enums.CancelByRuleCustom {
			custom = sub.CustomCancelByDate
		}
		if err := setRule(sub, *input.CancelByRule, custom); err != nil {
			return err
		}
	} else if input.CustomCancelByDate != nil {
		if sub.CancelByRule != enums.CancelByRuleCustom {
			return pkgerrors.New(pkgerrors.CodeValidation, "custom_cancel_by_date requires cancel_by_rule custom")
		}
		sub.CustomCancelByDate = input.CustomCancelByDate
	}
	if input.Reminders != nil {
		sub.Reminders = *input.Reminders
	}
	if input.CancellationMethod != nil {
		if !input.CancellationMethod.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid cancellation_method")
		}
		sub.CancellationMethod = *input.CancellationMethod
	}
	if input.CancelByNotes != nil {
		sub.CancelByNotes = trimmed(input.CancelByNotes)
	}
	if input.CancellationURL != nil {
		sub.CancellationURL = trimmed(input.CancellationURL)
	}
	if input.CancellationSteps != nil {
		sub.CancellationSteps = trimmed(input.CancellationSteps)
	}
	if input.RequiredInfo != nil {
		sub.RequiredInfo = trimmed(input.RequiredInfo)
	}
	if input.SupportContact != nil {
		sub.SupportContact = trimmed(input.SupportContact)
	}
	if input.TrialEndDate != nil {
		sub.TrialEndDate = input.TrialEndDate
	}
	if input.Notes != nil {
		sub.Notes = trimmed(input.Notes)
	}
	return nil
}

// setRule applies an explicit rule. A custom rule needs a custom date.
func setRule(sub *models.Subscription, rule enums.CancelByRule, custom *types.Date) error {
	if !rule.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid cancel_by_rule")
	}
	if rule == enums.CancelByRuleCustom {
		if custom == nil || custom.IsZero() {
			return pkgerrors.New(pkgerrors.CodeValidation, "custom_cancel_by_date is required when cancel_by_rule is custom")
		}
		sub.CustomCancelByDate = custom
	} else {
		sub.CustomCancelByDate = nil
	}
	sub.CancelByRule = rule
	return nil
}

func normalizeCurrency(value string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(value))
	if currency == "" {
		return defaultCurrency, nil
	}
	if len(currency) != 3 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "currency must be a 3-letter code")
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "currency must be a 3-letter code")
		}
	}
	return currency, nil
}

func describeCancelByChange(from, to types.Date) string {
	switch {
	case !deadline.HasDeadline(to):
		return "Cancel-by deadline removed (cancel anytime)"
	case !deadline.HasDeadline(from):
		return fmt.Sprintf("Cancel-by date set to %s", to)
	default:
		return fmt.Sprintf("Cancel-by date changed from %s to %s", from, to)
	}
}

func knownEnums(sub *models.Subscription) bool {
	return sub.Status.IsValid() && sub.Intent.IsValid() && sub.CancelByRule.IsValid() && sub.BillingPeriod.IsValid()
}

func hasProof(sub *models.Subscription, id uuid.UUID) bool {
	for _, doc := range sub.ProofDocuments {
		if doc.ID == id {
			return true
		}
	}
	return false
}

func nextPosition(sub *models.Subscription) int {
	next := 0
	for _, doc := range sub.ProofDocuments {
		if doc.Position >= next {
			next = doc.Position + 1
		}
	}
	return next
}

func sameDate(a, b *types.Date) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func blank(value *string) bool {
	return value == nil || strings.TrimSpace(*value) == ""
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
