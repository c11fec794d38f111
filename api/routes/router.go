package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/playforge/payments-backend/api/controllers"
	webhookcontrollers "github.com/playforge/payments-backend/api/controllers/webhooks"
	"github.com/playforge/payments-backend/api/middleware"
	"github.com/playforge/payments-backend/internal/payments"
	"github.com/playforge/payments-backend/internal/transfers"
	internalwebhooks "github.com/playforge/payments-backend/internal/webhooks"
	"github.com/playforge/payments-backend/pkg/config"
	"github.com/playforge/payments-backend/pkg/logger"
	"github.com/playforge/payments-backend/pkg/metrics"
)

// Deps carries everything the router wires together.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	Store pinger // nil when the memory ledger is active
	Cache pinger // nil when redis is disabled

	RateLimiterStore rateLimiterStore

	PaymentsService  payments.Service
	TransfersService transfers.Service

	StripeKeys       stripeKeySource
	StripeProcessor  *internalwebhooks.StripeProcessor
	StripeGuard      *internalwebhooks.IdempotencyGuard
	BankSecrets      bankSecretSource
	BankProcessor    *internalwebhooks.BankProcessor
	BankGuard        *internalwebhooks.IdempotencyGuard

	Metrics        *metrics.PaymentMetrics
	MetricsGateway prometheus.Gatherer
}

type pinger interface {
	Ping(ctx context.Context) error
}

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

type stripeKeySource interface {
	PublishableKey() string
	Environment() string
	SigningSecret() string
}

type bankSecretSource interface {
	SigningSecret() string
}

// NewRouter assembles the HTTP surface: payment initiation under rate
// limiting, raw-body webhook endpoints outside it, and health probes.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(d.Logger),
		middleware.RequestID(d.Logger),
		middleware.Logging(d.Logger),
		middleware.CORS(nil),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(d.Store, d.Cache, d.Logger))
	})

	if d.MetricsGateway != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.MetricsGateway, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(d.StripeProcessor, d.StripeKeys, d.StripeGuard, d.Logger, d.Metrics))
		r.Post("/bank", webhookcontrollers.BankWebhook(d.BankProcessor, d.BankSecrets, d.BankGuard, d.Logger, d.Metrics))
	})

	var policy middleware.RateLimitPolicy
	if d.Config != nil {
		policy = middleware.NewRateLimitPolicy("payments", d.Config.RateLimit.Window, d.Config.RateLimit.Max)
	}

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Get("/config", controllers.PaymentsConfig(d.StripeKeys))
		r.Get("/", controllers.ListPayments(d.PaymentsService, d.Logger))
		r.Get("/{id}", controllers.GetPayment(d.PaymentsService, d.Logger))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(policy, d.RateLimiterStore, d.Logger))
			r.Post("/create-intent", controllers.CreatePaymentIntent(d.PaymentsService, d.Logger))
			r.Post("/bank-transfer/initiate", controllers.InitiateBankTransfer(d.TransfersService, d.Logger))
		})
	})

	return r
}
