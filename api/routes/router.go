package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v84"

	"github.com/cancelmem/cancelmem-backend/api/controllers"
	billingcontrollers "github.com/cancelmem/cancelmem-backend/api/controllers/billing"
	dashboardcontrollers "github.com/cancelmem/cancelmem-backend/api/controllers/dashboard"
	deadlinecontrollers "github.com/cancelmem/cancelmem-backend/api/controllers/deadlines"
	exportcontrollers "github.com/cancelmem/cancelmem-backend/api/controllers/exports"
	subscriptioncontrollers "github.com/cancelmem/cancelmem-backend/api/controllers/subscriptions"
	webhookcontrollers "github.com/cancelmem/cancelmem-backend/api/controllers/webhooks"
	"github.com/cancelmem/cancelmem-backend/api/middleware"
	"github.com/cancelmem/cancelmem-backend/pkg/config"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
	"github.com/cancelmem/cancelmem-backend/pkg/metrics"
	pkgredis "github.com/cancelmem/cancelmem-backend/pkg/redis"
)

// Store is the redis surface shared by the idempotency and rate limit middleware.
type Store interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

type SigningSecretProvider interface {
	SigningSecret() string
}

type WebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type WebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// Dependencies collects everything the HTTP surface needs. Optional
// collaborators (Store, webhook wiring, metrics) may be nil.
type Dependencies struct {
	Subscriptions subscriptioncontrollers.SubscriptionService
	Emails        subscriptioncontrollers.EmailRecorder
	Dashboard     dashboardcontrollers.OverviewService
	Exports       exportcontrollers.ExportService
	Plans         billingcontrollers.PlanService

	WebhookService WebhookService
	WebhookGuard   WebhookGuard
	StripeSecrets  SigningSecretProvider

	Store           Store
	ReadyChecks     map[string]controllers.Pinger
	HTTPMetrics     *metrics.HTTPMetrics
	MetricsGatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.ReadyChecks))
	})

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.WebhookService, deps.StripeSecrets, deps.WebhookGuard, logg))
	})

	apiPolicy := middleware.NewRateLimitPolicy(
		"api",
		cfg.RateLimit.Window,
		cfg.RateLimit.UserLimit,
		cfg.RateLimit.IPLimit,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth, logg))
		r.Use(middleware.RateLimit(apiPolicy, deps.Store, logg))
		r.Use(middleware.Idempotency(deps.Store, logg))

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", subscriptioncontrollers.SubscriptionList(deps.Subscriptions, logg))
			r.Post("/", subscriptioncontrollers.SubscriptionCreate(deps.Subscriptions, deps.Emails, logg))

			r.Route("/{subscriptionId}", func(r chi.Router) {
				r.Get("/", subscriptioncontrollers.SubscriptionGet(deps.Subscriptions, logg))
				r.Patch("/", subscriptioncontrollers.SubscriptionUpdate(deps.Subscriptions, logg))
				r.Delete("/", subscriptioncontrollers.SubscriptionDelete(deps.Subscriptions, logg))
				r.Post("/cancellation", subscriptioncontrollers.SubscriptionCancellation(deps.Subscriptions, logg))
				r.Post("/reactivate", subscriptioncontrollers.SubscriptionReactivate(deps.Subscriptions, logg))
				r.Post("/proofs", subscriptioncontrollers.ProofCreate(deps.Subscriptions, logg))
				r.Delete("/proofs/{proofId}", subscriptioncontrollers.ProofDelete(deps.Subscriptions, logg))
				r.Post("/timeline", subscriptioncontrollers.TimelineCreate(deps.Subscriptions, logg))
			})
		})

		r.Post("/deadlines/preview", deadlinecontrollers.Preview(logg))
		r.Get("/dashboard", dashboardcontrollers.Overview(deps.Dashboard, logg))

		r.Route("/exports", func(r chi.Router) {
			r.Get("/subscriptions.csv", exportcontrollers.SubscriptionsCSV(deps.Exports, logg))
			r.Get("/subscriptions/{subscriptionId}/audit.csv", exportcontrollers.AuditCSV(deps.Exports, logg))
			r.Get("/deadlines.ics", exportcontrollers.DeadlinesICS(deps.Exports, logg))
		})

		r.Route("/billing", func(r chi.Router) {
			r.Get("/plan", billingcontrollers.PlanGet(deps.Plans, logg))
			r.Post("/checkout", billingcontrollers.Checkout(deps.Plans, logg))
			r.Post("/portal", billingcontrollers.Portal(deps.Plans, logg))
		})
	})

	return r
}
