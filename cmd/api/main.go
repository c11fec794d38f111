package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/playforge/payments-backend/api/routes"
	"github.com/playforge/payments-backend/internal/ledger"
	"github.com/playforge/payments-backend/internal/payments"
	"github.com/playforge/payments-backend/internal/transfers"
	internalwebhooks "github.com/playforge/payments-backend/internal/webhooks"
	"github.com/playforge/payments-backend/pkg/config"
	"github.com/playforge/payments-backend/pkg/db"
	"github.com/playforge/payments-backend/pkg/logger"
	"github.com/playforge/payments-backend/pkg/metrics"
	"github.com/playforge/payments-backend/pkg/migrate"
	"github.com/playforge/payments-backend/pkg/redis"
	"github.com/playforge/payments-backend/pkg/stripe"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "payments-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "payments-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	registry := prometheus.NewRegistry()
	pm := metrics.NewPaymentMetrics(registry)

	var closers []func() error

	var repo ledger.Repository
	var store *db.Client
	if cfg.FeatureFlags.UseMemoryLedger {
		logg.Warn(context.Background(), "memory ledger active, transactions will not survive restarts")
		repo = ledger.NewMemoryRepository()
	} else {
		store, err = db.New(context.Background(), cfg.DB, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap database", err)
			os.Exit(1)
		}
		closers = append(closers, store.Close)

		if err := migrate.MaybeRunDev(context.Background(), cfg, logg, store); err != nil {
			logg.Error(context.Background(), "failed to run dev migrations", err)
			os.Exit(1)
		}
		repo = ledger.NewRepository(store.DB())
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	closers = append(closers, redisClient.Close)

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg, pm)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe client", err)
		os.Exit(1)
	}

	bankClient, err := transfers.NewClient(cfg.Bank, logg, pm)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap bank client", err)
		os.Exit(1)
	}

	ledgerSvc, err := ledger.NewService(repo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}
	paymentsSvc, err := payments.NewService(cfg.Payments, stripeClient, ledgerSvc, logg, pm)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}
	transfersSvc, err := transfers.NewService(cfg.Payments, bankClient, ledgerSvc, logg, pm)
	if err != nil {
		logg.Error(context.Background(), "failed to create transfers service", err)
		os.Exit(1)
	}

	deps := routes.Deps{
		Config:           cfg,
		Logger:           logg,
		Cache:            redisClient,
		RateLimiterStore: redisClient,
		PaymentsService:  paymentsSvc,
		TransfersService: transfersSvc,
		StripeKeys:       stripeClient,
		StripeProcessor:  internalwebhooks.NewStripeProcessor(ledgerSvc, logg),
		StripeGuard:      internalwebhooks.NewIdempotencyGuard(redisClient, "stripe", logg),
		BankSecrets:      bankClient,
		BankProcessor:    internalwebhooks.NewBankProcessor(ledgerSvc, logg),
		BankGuard:        internalwebhooks.NewIdempotencyGuard(redisClient, "bank", logg),
		Metrics:          pm,
		MetricsGateway:   registry,
	}
	if store != nil {
		deps.Store = store
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting payments api")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(deps),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "payments api stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	var closeErr error
	if err := server.Shutdown(graceCtx); err != nil {
		closeErr = multierr.Append(closeErr, err)
	}
	for _, closeFn := range closers {
		closeErr = multierr.Append(closeErr, closeFn())
	}
	if closeErr != nil {
		logg.Error(ctx, "shutdown finished with errors", closeErr)
		os.Exit(1)
	}
	logg.Info(ctx, "payments api stopped cleanly")
}
