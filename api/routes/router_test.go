package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stripe/stripe-go/v84"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cancelmem/cancelmem-backend/api/controllers"
	subscriptioncontrollers "github.com/cancelmem/cancelmem-backend/api/controllers/subscriptions"
	subsvc "github.com/cancelmem/cancelmem-backend/internal/subscriptions"
	"github.com/cancelmem/cancelmem-backend/pkg/auth"
	"github.com/cancelmem/cancelmem-backend/pkg/config"
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
	"github.com/cancelmem/cancelmem-backend/pkg/metrics"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

// stubSubscriptions only implements List; other calls panic.
type stubSubscriptions struct {
	subscriptioncontrollers.SubscriptionService
	listedFor uuid.UUID
}

func (s *stubSubscriptions) List(_ context.Context, userID uuid.UUID, _ subsvc.ListParams) ([]models.Subscription, error) {
	s.listedFor = userID
	return nil, nil
}

type stubWebhookService struct{}

func (stubWebhookService) HandleEvent(context.Context, *stripe.Event) error { return nil }

type stubGuard struct{}

func (stubGuard) CheckAndMark(context.Context, string) (bool, error) { return false, nil }
func (stubGuard) Delete(context.Context, string) error               { return nil }

type stubSecrets struct{}

func (stubSecrets) SigningSecret() string { return "whsec_test" }

func testConfig() *config.Config {
	return &config.Config{
		App:  config.AppConfig{Env: "dev", CORSOrigins: []string{"http://localhost:3000"}},
		Auth: config.AuthConfig{JWTSecret: "router-secret", Audience: "authenticated"},
	}
}

func bearer(t *testing.T, cfg *config.Config, userID uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.Auth, time.Now(), time.Hour, auth.AccessTokenPayload{
		UserID: userID,
		Email:  "me@example.com",
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func newTestRouter(deps Dependencies) (http.Handler, *config.Config) {
	cfg := testConfig()
	if deps.WebhookService == nil {
		deps.WebhookService = stubWebhookService{}
		deps.WebhookGuard = stubGuard{}
		deps.StripeSecrets = stubSecrets{}
	}
	return NewRouter(cfg, logger.Nop(), deps), cfg
}

func TestHealthLive(t *testing.T) {
	router, _ := newTestRouter(Dependencies{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", rec.Header().Get("X-CancelMem-Env"))
}

func TestHealthReadyReportsDependencyFailure(t *testing.T) {
	router, _ := newTestRouter(Dependencies{ReadyChecks: map[string]controllers.Pinger{
		"db":    stubPinger{},
		"redis": stubPinger{err: errors.New("connection refused")},
	}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthReadyOK(t *testing.T) {
	router, _ := newTestRouter(Dependencies{ReadyChecks: map[string]controllers.Pinger{
		"db":    stubPinger{},
		"redis": nil,
	}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"skipped"`)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	router, _ := newTestRouter(Dependencies{Subscriptions: &stubSubscriptions{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIListsSubscriptionsForCaller(t *testing.T) {
	subs := &stubSubscriptions{}
	router, cfg := newTestRouter(Dependencies{Subscriptions: subs})
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions", nil)
	req.Header.Set("Authorization", bearer(t, cfg, userID))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, userID, subs.listedFor)
}

func TestDeadlinePreviewRoute(t *testing.T) {
	router, cfg := newTestRouter(Dependencies{})

	body := `{"renewal_date":"2026-03-15","intent":"trial"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deadlines/preview?as_of=2026-03-01", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, cfg, uuid.New()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"cancel_by_date":"2026-03-14"`)
}

func TestStripeWebhookIsPublic(t *testing.T) {
	router, _ := newTestRouter(Dependencies{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// Reaches the handler (missing signature) rather than the auth middleware.
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	router, _ := newTestRouter(Dependencies{
		HTTPMetrics:     metrics.NewHTTPMetrics(reg),
		MetricsGatherer: reg,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/health/live"`)
}
