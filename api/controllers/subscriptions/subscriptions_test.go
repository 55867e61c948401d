package subscriptions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cancelmem/cancelmem-backend/api/middleware"
	"github.com/cancelmem/cancelmem-backend/internal/deadline"
	"github.com/cancelmem/cancelmem-backend/internal/entitlements"
	subsvc "github.com/cancelmem/cancelmem-backend/internal/subscriptions"
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	pkgerrors "github.com/cancelmem/cancelmem-backend/pkg/errors"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

type stubSubscriptionService struct {
	sub          *models.Subscription
	list         []models.Subscription
	err          error
	listParams   subsvc.ListParams
	created      subsvc.CreateInput
	cancellation subsvc.CancellationInput
	proofID      uuid.UUID
	deleted      bool
}

func (s *stubSubscriptionService) Create(_ context.Context, _ uuid.UUID, input subsvc.CreateInput) (*models.Subscription, error) {
	s.created = input
	return s.sub, s.err
}

func (s *stubSubscriptionService) Get(context.Context, uuid.UUID, uuid.UUID) (*models.Subscription, error) {
	return s.sub, s.err
}

func (s *stubSubscriptionService) List(_ context.Context, _ uuid.UUID, params subsvc.ListParams) ([]models.Subscription, error) {
	s.listParams = params
	return s.list, s.err
}

func (s *stubSubscriptionService) Update(context.Context, uuid.UUID, uuid.UUID, subsvc.UpdateInput) (*models.Subscription, error) {
	return s.sub, s.err
}

func (s *stubSubscriptionService) RecordCancellation(_ context.Context, _, _ uuid.UUID, input subsvc.CancellationInput) (*models.Subscription, error) {
	s.cancellation = input
	return s.sub, s.err
}

func (s *stubSubscriptionService) Reactivate(context.Context, uuid.UUID, uuid.UUID, subsvc.ReactivateInput) (*models.Subscription, error) {
	return s.sub, s.err
}

func (s *stubSubscriptionService) AddProof(context.Context, uuid.UUID, uuid.UUID, subsvc.ProofInput) (*models.Subscription, error) {
	return s.sub, s.err
}

func (s *stubSubscriptionService) DeleteProof(_ context.Context, _, _, proofID uuid.UUID) (*models.Subscription, error) {
	s.proofID = proofID
	return s.sub, s.err
}

func (s *stubSubscriptionService) AddTimelineEvent(context.Context, uuid.UUID, uuid.UUID, subsvc.TimelineInput) (*models.Subscription, error) {
	return s.sub, s.err
}

func (s *stubSubscriptionService) Delete(context.Context, uuid.UUID, uuid.UUID) error {
	s.deleted = true
	return s.err
}

type stubEmailRecorder struct {
	identities []entitlements.Identity
}

func (s *stubEmailRecorder) RememberEmail(_ context.Context, identity entitlements.Identity) error {
	s.identities = append(s.identities, identity)
	return nil
}

func newRouter(svc SubscriptionService, emails EmailRecorder) http.Handler {
	logg := logger.Nop()
	r := chi.NewRouter()
	r.Get("/subscriptions", SubscriptionList(svc, logg))
	r.Post("/subscriptions", SubscriptionCreate(svc, emails, logg))
	r.Get("/subscriptions/{subscriptionId}", SubscriptionGet(svc, logg))
	r.Patch("/subscriptions/{subscriptionId}", SubscriptionUpdate(svc, logg))
	r.Delete("/subscriptions/{subscriptionId}", SubscriptionDelete(svc, logg))
	r.Post("/subscriptions/{subscriptionId}/cancellation", SubscriptionCancellation(svc, logg))
	r.Post("/subscriptions/{subscriptionId}/reactivate", SubscriptionReactivate(svc, logg))
	r.Post("/subscriptions/{subscriptionId}/proofs", ProofCreate(svc, logg))
	r.Delete("/subscriptions/{subscriptionId}/proofs/{proofId}", ProofDelete(svc, logg))
	r.Post("/subscriptions/{subscriptionId}/timeline", TimelineCreate(svc, logg))
	return r
}

func authed(req *http.Request, userID uuid.UUID) *http.Request {
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithEmail(ctx, "person@example.com")
	return req.WithContext(ctx)
}

func sampleSubscription() *models.Subscription {
	renewal := types.MustParseDate("2026-06-15")
	return &models.Subscription{
		ID:                 uuid.New(),
		Name:               "Streaming",
		Amount:             decimal.RequireFromString("15.99"),
		Currency:           "USD",
		RenewalDate:        renewal,
		BillingPeriod:      enums.BillingPeriodMonthly,
		Intent:             enums.IntentCancelSoon,
		CancelByRule:       enums.CancelByRuleOneDayBefore,
		CancelByDate:       renewal.AddDays(-1),
		CancellationMethod: enums.CancellationMethodOnline,
		Status:             enums.SubscriptionStatusActive,
		ProofStatus:        enums.ProofStatusNotRequired,
		Reminders:          models.Reminders{SevenDays: true, OneDay: true},
		CreatedAt:          time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:          time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		ProofDocuments: []models.ProofDocument{{
			ID:      uuid.New(),
			Name:    "screenshot",
			Type:    enums.ProofDocumentTypeScreenshot,
			Payload: strPtr("aGVsbG8="),
		}},
		Timeline: []models.TimelineEvent{{ID: uuid.New(), Type: enums.TimelineEventTypeCreated, Description: "Subscription added"}},
	}
}

func strPtr(v string) *string { return &v }

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestSubscriptionListRequiresUser(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(&stubSubscriptionService{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/subscriptions", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestSubscriptionListParsesFilters(t *testing.T) {
	svc := &stubSubscriptionService{list: []models.Subscription{*sampleSubscription()}}
	req := authed(httptest.NewRequest(http.MethodGet, "/subscriptions?status=active&intent=cancel-soon&sort=monthly&order=desc&as_of=2026-06-10", nil), uuid.New())
	rec := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.listParams.Status == nil || *svc.listParams.Status != enums.SubscriptionStatusActive {
		t.Fatalf("status filter not applied: %+v", svc.listParams)
	}
	if svc.listParams.Sort != subsvc.SortMonthly || !svc.listParams.Desc {
		t.Fatalf("sort not applied: %+v", svc.listParams)
	}

	var out subscriptionListResponse
	decodeData(t, rec, &out)
	if out.Count != 1 {
		t.Fatalf("expected 1 subscription got %d", out.Count)
	}
	got := out.Subscriptions[0]
	if got.DaysUntilCancelBy != 4 {
		t.Fatalf("expected 4 days until cancel-by, got %v", got.DaysUntilCancelBy)
	}
	if got.NeedsProof {
		t.Fatal("live subscriptions never need proof")
	}
	if len(got.ProofDocuments) != 1 || got.ProofDocuments[0].Payload != nil {
		t.Fatalf("list view must omit proof payloads: %+v", got.ProofDocuments)
	}
	if len(got.Timeline) != 0 {
		t.Fatal("list view must omit timeline")
	}
	if got.MonthlyEquivalent.String() != "15.99" {
		t.Fatalf("unexpected monthly equivalent %s", got.MonthlyEquivalent)
	}
}

func TestSubscriptionListRejectsUnknownSort(t *testing.T) {
	req := authed(httptest.NewRequest(http.MethodGet, "/subscriptions?sort=price", nil), uuid.New())
	rec := httptest.NewRecorder()
	newRouter(&stubSubscriptionService{}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestSubscriptionCreateRemembersEmail(t *testing.T) {
	svc := &stubSubscriptionService{sub: sampleSubscription()}
	emails := &stubEmailRecorder{}
	userID := uuid.New()
	body := []byte(`{"name":"Streaming","amount":"15.99","currency":"USD","renewal_date":"2026-06-15","billing_period":"monthly","intent":"cancel-soon"}`)
	req := authed(httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewReader(body)), userID)
	rec := httptest.NewRecorder()
	newRouter(svc, emails).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.created.Name != "Streaming" || svc.created.RenewalDate != types.MustParseDate("2026-06-15") {
		t.Fatalf("input not decoded: %+v", svc.created)
	}
	if len(emails.identities) != 1 || emails.identities[0].UserID != userID {
		t.Fatalf("expected email remembered, got %+v", emails.identities)
	}

	var out subscriptionResponse
	decodeData(t, rec, &out)
	if len(out.ProofDocuments) != 1 || out.ProofDocuments[0].Payload == nil {
		t.Fatal("detail view should include proof payloads")
	}
	if len(out.Timeline) != 1 {
		t.Fatal("detail view should include timeline")
	}
}

func TestSubscriptionCreateValidationError(t *testing.T) {
	svc := &stubSubscriptionService{sub: sampleSubscription()}
	req := authed(httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewReader([]byte(`{"amount":"1"}`))), uuid.New())
	rec := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestSubscriptionCreatePlanLimit(t *testing.T) {
	svc := &stubSubscriptionService{err: pkgerrors.New(pkgerrors.CodePlanLimit, "free plan limit reached")}
	body := []byte(`{"name":"Gym","amount":"30","renewal_date":"2026-06-15","billing_period":"monthly","intent":"keep"}`)
	req := authed(httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewReader(body)), uuid.New())
	rec := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(rec, req)
	if rec.Code == http.StatusCreated || rec.Code == http.StatusOK {
		t.Fatalf("expected plan limit failure, got %d", rec.Code)
	}
}

func TestSubscriptionGetInvalidID(t *testing.T) {
	req := authed(httptest.NewRequest(http.MethodGet, "/subscriptions/not-a-uuid", nil), uuid.New())
	rec := httptest.NewRecorder()
	newRouter(&stubSubscriptionService{}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestSubscriptionGetNotFound(t *testing.T) {
	svc := &stubSubscriptionService{err: pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")}
	req := authed(httptest.NewRequest(http.MethodGet, "/subscriptions/"+uuid.NewString(), nil), uuid.New())
	rec := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestSubscriptionGetAnytimeKeepsSentinelDeadline(t *testing.T) {
	sub := sampleSubscription()
	sub.Intent = enums.IntentKeep
	sub.CancelByRule = enums.CancelByRuleAnytime
	sub.CancelByDate = deadline.NoDeadline
	svc := &stubSubscriptionService{sub: sub}
	req := authed(httptest.NewRequest(http.MethodGet, "/subscriptions/"+sub.ID.String(), nil), uuid.New())
	rec := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), `"cancel_by_date":null`) {
		t.Fatalf("cancel_by_date must never be null: %s", rec.Body.String())
	}
	var out subscriptionResponse
	decodeData(t, rec, &out)
	if out.CancelByDate != deadline.NoDeadline {
		t.Fatalf("expected sentinel %s, got %s", deadline.NoDeadline, out.CancelByDate)
	}
	if out.DaysUntilCancelBy <= 10000 {
		t.Fatalf("expected sentinel distance over 10000 days, got %d", out.DaysUntilCancelBy)
	}
	if out.HasDeadline {
		t.Fatal("anytime subscription must report has_deadline false")
	}
}

func TestSubscriptionDelete(t *testing.T) {
	svc := &stubSubscriptionService{}
	req := authed(httptest.NewRequest(http.MethodDelete, "/subscriptions/"+uuid.NewString(), nil), uuid.New())
	rec := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
	if !svc.deleted {
		t.Fatal("expected delete to be called")
	}
}

func TestSubscriptionCancellationDecodesProofs(t *testing.T) {
	sub := sampleSubscription()
	sub.Status = enums.SubscriptionStatusCancelled
	sub.ProofStatus = enums.ProofStatusIncomplete
	svc := &stubSubscriptionService{sub: sub}
	body := []byte(`{"status":"cancelled","date":"2026-06-10","proofs":[{"name":"email","type":"email","confirmation_code":"ABC123"}]}`)
	req := authed(httptest.NewRequest(http.MethodPost, "/subscriptions/"+sub.ID.String()+"/cancellation", bytes.NewReader(body)), uuid.New())
	rec := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.cancellation.Status != enums.SubscriptionStatusCancelled {
		t.Fatalf("unexpected status %q", svc.cancellation.Status)
	}
	if len(svc.cancellation.Proofs) != 1 || *svc.cancellation.Proofs[0].ConfirmationCode != "ABC123" {
		t.Fatalf("proofs not decoded: %+v", svc.cancellation.Proofs)
	}
	var out subscriptionResponse
	decodeData(t, rec, &out)
	if !out.NeedsProof {
		t.Fatal("incomplete proof on a cancellation should be flagged")
	}
}

func TestProofDeletePassesProofID(t *testing.T) {
	svc := &stubSubscriptionService{sub: sampleSubscription()}
	proofID := uuid.New()
	req := authed(httptest.NewRequest(http.MethodDelete, "/subscriptions/"+uuid.NewString()+"/proofs/"+proofID.String(), nil), uuid.New())
	rec := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.proofID != proofID {
		t.Fatalf("expected proof id %s got %s", proofID, svc.proofID)
	}
}

func TestTimelineCreate(t *testing.T) {
	svc := &stubSubscriptionService{sub: sampleSubscription()}
	body := []byte(`{"type":"support-contacted","description":"Called support"}`)
	req := authed(httptest.NewRequest(http.MethodPost, "/subscriptions/"+uuid.NewString()+"/timeline", bytes.NewReader(body)), uuid.New())
	rec := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
}
