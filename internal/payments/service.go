package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/playforge/payments-backend/api/validators"
	"github.com/playforge/payments-backend/internal/ledger"
	"github.com/playforge/payments-backend/pkg/config"
	"github.com/playforge/payments-backend/pkg/db/models"
	"github.com/playforge/payments-backend/pkg/enums"
	pkgerrors "github.com/playforge/payments-backend/pkg/errors"
	"github.com/playforge/payments-backend/pkg/logger"
	"github.com/playforge/payments-backend/pkg/metrics"
	stripeclient "github.com/playforge/payments-backend/pkg/stripe"
)

// Stripe rejects metadata values longer than 500 characters, so cap ours the
// same way instead of failing the whole request over an oversized value.
const maxMetadataValueLen = 500

// IntentCreator is the provider surface the service needs. *stripe.Client
// satisfies it; tests substitute fakes.
type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, params stripeclient.IntentParams) (*stripeclient.Intent, error)
}

// CreateIntentInput is the decoded create-payment request.
type CreateIntentInput struct {
	AmountCents int64             `json:"amount" validate:"required"`
	Currency    string            `json:"currency" validate:"required"`
	GameID      string            `json:"game_id"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

// CreateIntentResult pairs the ledger row with the provider's client secret.
// The secret is handed to the caller once and never persisted.
type CreateIntentResult struct {
	Transaction  *models.Transaction
	ClientSecret string
}

// Service drives the card-rail payment intent lifecycle.
type Service interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (*CreateIntentResult, error)
	GetPayment(ctx context.Context, id string) (*models.Transaction, error)
	ListPayments(ctx context.Context) ([]models.Transaction, error)
}

type service struct {
	cfg      config.PaymentsConfig
	provider IntentCreator
	ledger   ledger.Service
	logg     *logger.Logger
	metrics  *metrics.PaymentMetrics
}

// NewService wires the payment intent service.
func NewService(cfg config.PaymentsConfig, provider IntentCreator, ledgerSvc ledger.Service, logg *logger.Logger, pm *metrics.PaymentMetrics) (Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("payment provider client required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{
		cfg:      cfg,
		provider: provider,
		ledger:   ledgerSvc,
		logg:     logg,
		metrics:  pm,
	}, nil
}

func (s *service) CreateIntent(ctx context.Context, input CreateIntentInput) (*CreateIntentResult, error) {
	input.Currency = strings.ToLower(strings.TrimSpace(input.Currency))
	input.GameID = strings.TrimSpace(input.GameID)
	input.Description = validators.SanitizeString(input.Description, 0)

	if details := s.validate(input); len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment request").WithDetails(details)
	}

	metadata := make(map[string]string, len(input.Metadata)+1)
	for k, v := range input.Metadata {
		metadata[strings.TrimSpace(k)] = validators.SanitizeString(v, maxMetadataValueLen)
	}
	if input.GameID != "" {
		metadata["game_id"] = input.GameID
	}

	providerCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	intent, err := s.provider.CreatePaymentIntent(providerCtx, stripeclient.IntentParams{
		AmountCents: input.AmountCents,
		Currency:    input.Currency,
		Description: input.Description,
		Metadata:    metadata,
	})
	if err != nil {
		s.metrics.IncIntentCreated(enums.PaymentRailCard.String(), "provider_error")
		return nil, err
	}

	var metadataJSON json.RawMessage
	if len(metadata) > 0 {
		metadataJSON, err = json.Marshal(metadata)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payment metadata")
		}
	}

	txn, err := s.ledger.Create(ctx, ledger.CreateTransactionInput{
		Rail:                enums.PaymentRailCard,
		AmountCents:         input.AmountCents,
		Currency:            input.Currency,
		Description:         html.EscapeString(input.Description),
		Metadata:            metadataJSON,
		ProviderReferenceID: &intent.ID,
	})
	if err != nil {
		// The intent exists at the provider but was never recorded. The
		// reconciler acknowledges its webhooks as unknown references.
		if s.logg != nil {
			s.logg.Error(s.logg.WithProviderReference(ctx, intent.ID), "payment intent created but not recorded", err)
		}
		s.metrics.IncIntentCreated(enums.PaymentRailCard.String(), "ledger_error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment intent")
	}

	s.metrics.IncIntentCreated(enums.PaymentRailCard.String(), "created")
	if s.logg != nil {
		ctx = s.logg.WithTransactionID(ctx, txn.ID)
		ctx = s.logg.WithProviderReference(ctx, intent.ID)
		s.logg.Info(ctx, "payment intent created")
	}

	return &CreateIntentResult{Transaction: txn, ClientSecret: intent.ClientSecret}, nil
}

func (s *service) GetPayment(ctx context.Context, id string) (*models.Transaction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	return s.ledger.GetByID(ctx, id)
}

func (s *service) ListPayments(ctx context.Context) ([]models.Transaction, error) {
	return s.ledger.List(ctx)
}

// validate enumerates every violated field so a caller fixing a bad request
// learns about all problems in one round trip.
func (s *service) validate(input CreateIntentInput) map[string]string {
	details := map[string]string{}

	if input.AmountCents < s.cfg.MinAmountCents || input.AmountCents > s.cfg.MaxAmountCents {
		details["amount"] = fmt.Sprintf("amount must be between %d and %d minor units",
			s.cfg.MinAmountCents, s.cfg.MaxAmountCents)
	}

	if input.Currency == "" {
		details["currency"] = "currency is required"
	} else if !s.cfg.CurrencyAllowed(input.Currency) {
		details["currency"] = fmt.Sprintf("currency %q is not supported", input.Currency)
	}

	if input.GameID != "" {
		if _, err := uuid.Parse(input.GameID); err != nil {
			details["game_id"] = "game_id must be a valid UUID"
		}
	}

	if utf8.RuneCountInString(input.Description) > s.cfg.MaxDescriptionLen {
		details["description"] = fmt.Sprintf("description must be at most %d characters", s.cfg.MaxDescriptionLen)
	}

	if len(input.Metadata) > s.cfg.MaxMetadataKeys {
		details["metadata"] = fmt.Sprintf("metadata may hold at most %d keys", s.cfg.MaxMetadataKeys)
	}

	return details
}
