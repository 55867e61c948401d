// Package export renders a user's subscriptions as CSV, a per-subscription
// audit CSV and an iCalendar feed of cancel-by deadlines.
package export

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/cancelmem/cancelmem-backend/internal/reporting"
	"github.com/cancelmem/cancelmem-backend/internal/subscriptions"
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
)

type subscriptionReader interface {
	Get(ctx context.Context, userID, id uuid.UUID) (*models.Subscription, error)
	List(ctx context.Context, userID uuid.UUID, params subscriptions.ListParams) ([]models.Subscription, error)
}

type proGate interface {
	RequirePro(ctx context.Context, userID uuid.UUID) error
}

type ServiceParams struct {
	Subscriptions subscriptionReader
	Gate          proGate
	Now           func() time.Time
}

// Service streams exports for pro users.
type Service struct {
	subs subscriptionReader
	gate proGate
	now  func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Subscriptions == nil {
		return nil, errors.New("subscription reader required")
	}
	if params.Gate == nil {
		return nil, errors.New("plan gate required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{subs: params.Subscriptions, gate: params.Gate, now: now}, nil
}

func (s *Service) SubscriptionsCSV(ctx context.Context, userID uuid.UUID, w io.Writer) error {
	subs, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	return WriteCSV(w, subs, reporting.MonthlyEquivalents(subs))
}

func (s *Service) AuditCSV(ctx context.Context, userID, id uuid.UUID, w io.Writer) error {
	if err := s.gate.RequirePro(ctx, userID); err != nil {
		return err
	}
	sub, err := s.subs.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	return WriteAuditCSV(w, sub)
}

// Deadlines writes the iCalendar feed. It returns a NOT_FOUND error when no
// subscription has a deadline worth a calendar entry.
func (s *Service) Deadlines(ctx context.Context, userID uuid.UUID, w io.Writer) error {
	subs, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if err := WriteICalendar(w, subs, s.now()); err != nil {
		if errors.Is(err, ErrNoDeadlines) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "no upcoming cancel-by deadlines")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode calendar")
	}
	return nil
}

func (s *Service) load(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	if err := s.gate.RequirePro(ctx, userID); err != nil {
		return nil, err
	}
	return s.subs.List(ctx, userID, subscriptions.ListParams{Sort: subscriptions.SortCancelBy})
}
