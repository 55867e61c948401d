package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/cancelmem/cancelmem-backend/api/middleware"
	"github.com/cancelmem/cancelmem-backend/internal/entitlements"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
)

type stubPlanService struct {
	identity entitlements.Identity
	err      error
}

func (s *stubPlanService) Summary(context.Context, uuid.UUID) (*entitlements.Summary, error) {
	limit := 5
	return &entitlements.Summary{Plan: enums.PlanFree, SubscriptionLimit: &limit, SubscriptionCount: 2}, s.err
}

func (s *stubPlanService) CreateCheckoutSession(_ context.Context, identity entitlements.Identity) (string, error) {
	s.identity = identity
	return "https://checkout.stripe.test/session", s.err
}

func (s *stubPlanService) CreatePortalSession(context.Context, uuid.UUID) (string, error) {
	return "https://billing.stripe.test/portal", s.err
}

func authed(req *http.Request, userID uuid.UUID) *http.Request {
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithEmail(ctx, "payer@example.com")
	return req.WithContext(ctx)
}

func TestPlanGet(t *testing.T) {
	rec := httptest.NewRecorder()
	PlanGet(&stubPlanService{}, logger.Nop()).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/billing/plan", nil), uuid.New()))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var envelope struct {
		Data entitlements.Summary `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Plan != enums.PlanFree || *envelope.Data.SubscriptionLimit != 5 {
		t.Fatalf("unexpected summary %+v", envelope.Data)
	}
}

func TestCheckoutPassesIdentity(t *testing.T) {
	svc := &stubPlanService{}
	userID := uuid.New()
	rec := httptest.NewRecorder()
	Checkout(svc, logger.Nop()).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/billing/checkout", nil), userID))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	if svc.identity.UserID != userID || svc.identity.Email != "payer@example.com" {
		t.Fatalf("unexpected identity %+v", svc.identity)
	}
	var envelope struct {
		Data sessionResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.URL == "" {
		t.Fatal("expected checkout url")
	}
}

func TestPortalWithoutCustomer(t *testing.T) {
	svc := &stubPlanService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "no billing account yet")}
	rec := httptest.NewRecorder()
	Portal(svc, logger.Nop()).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/billing/portal", nil), uuid.New()))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
}

func TestBillingRequiresUser(t *testing.T) {
	rec := httptest.NewRecorder()
	Checkout(&stubPlanService{}, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/billing/checkout", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}
