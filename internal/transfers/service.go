package transfers

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/playforge/payments-backend/api/validators"
	"github.com/playforge/payments-backend/internal/ledger"
	"github.com/playforge/payments-backend/pkg/config"
	"github.com/playforge/payments-backend/pkg/db/models"
	"github.com/playforge/payments-backend/pkg/enums"
	pkgerrors "github.com/playforge/payments-backend/pkg/errors"
	"github.com/playforge/payments-backend/pkg/logger"
	"github.com/playforge/payments-backend/pkg/metrics"
)

const maxAccountNameLen = 100

var (
	accountNumberPattern = regexp.MustCompile(`^[0-9A-Z-]{6,34}$`)
	routingNumberPattern = regexp.MustCompile(`^[0-9]{9}$`)
)

// currencyExponents maps ISO codes to their minor-unit exponent. Unlisted
// currencies use two decimal places.
var currencyExponents = map[string]int32{
	"jpy": 0,
}

// TransferCreator is the bank API surface the service needs.
type TransferCreator interface {
	CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error)
}

// InitiateInput is the decoded bank transfer request. Amounts arrive in
// integer minor units, same as the card rail.
type InitiateInput struct {
	AmountCents   int64  `json:"amount"`
	Currency      string `json:"currency"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	RoutingNumber string `json:"routing_number"`
	GameID        string `json:"game_id"`
	Description   string `json:"description"`
}

// Service drives the alternate-rail bank transfer lifecycle.
type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*models.Transaction, error)
}

type service struct {
	cfg     config.PaymentsConfig
	bank    TransferCreator
	ledger  ledger.Service
	logg    *logger.Logger
	metrics *metrics.PaymentMetrics
}

// NewService wires the bank transfer service.
func NewService(cfg config.PaymentsConfig, bank TransferCreator, ledgerSvc ledger.Service, logg *logger.Logger, pm *metrics.PaymentMetrics) (Service, error) {
	if bank == nil {
		return nil, fmt.Errorf("bank client required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{cfg: cfg, bank: bank, ledger: ledgerSvc, logg: logg, metrics: pm}, nil
}

func (s *service) Initiate(ctx context.Context, input InitiateInput) (*models.Transaction, error) {
	input.Currency = strings.ToLower(strings.TrimSpace(input.Currency))
	input.AccountName = validators.SanitizeString(input.AccountName, 0)
	input.AccountNumber = strings.TrimSpace(input.AccountNumber)
	input.RoutingNumber = strings.TrimSpace(input.RoutingNumber)
	input.GameID = strings.TrimSpace(input.GameID)
	input.Description = validators.SanitizeString(input.Description, 0)

	if details := s.validate(input); len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnprocessable, "invalid transfer request").WithDetails(details)
	}

	transfer, err := s.bank.CreateTransfer(ctx, TransferRequest{
		Destination: Destination{
			AccountName:   input.AccountName,
			AccountNumber: input.AccountNumber,
			RoutingNumber: input.RoutingNumber,
		},
		Amount:    majorUnits(input.AmountCents, input.Currency),
		Currency:  input.Currency,
		Reference: input.GameID,
	})
	if err != nil {
		s.metrics.IncIntentCreated(enums.PaymentRailBank.String(), "provider_error")
		return nil, err
	}

	metadataFields := map[string]string{
		// Escaped at the storage boundary; raw values never reach the ledger.
		"account_name":        html.EscapeString(input.AccountName),
		"account_number_last": lastFour(input.AccountNumber),
	}
	if input.GameID != "" {
		metadataFields["game_id"] = input.GameID
	}
	metadata, err := json.Marshal(metadataFields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode transfer metadata")
	}

	txn, err := s.ledger.Create(ctx, ledger.CreateTransactionInput{
		Rail:                enums.PaymentRailBank,
		AmountCents:         input.AmountCents,
		Currency:            input.Currency,
		Description:         html.EscapeString(input.Description),
		Metadata:            metadata,
		ProviderReferenceID: &transfer.ID,
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithProviderReference(ctx, transfer.ID), "bank transfer accepted but not recorded", err)
		}
		s.metrics.IncIntentCreated(enums.PaymentRailBank.String(), "ledger_error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record bank transfer")
	}

	s.metrics.IncIntentCreated(enums.PaymentRailBank.String(), "created")
	if s.logg != nil {
		ctx = s.logg.WithTransactionID(ctx, txn.ID)
		ctx = s.logg.WithRail(ctx, enums.PaymentRailBank.String())
		s.logg.Info(ctx, "bank transfer initiated")
	}
	return txn, nil
}

func (s *service) validate(input InitiateInput) map[string]string {
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

	if nameLen := utf8.RuneCountInString(input.AccountName); nameLen == 0 || nameLen > maxAccountNameLen {
		details["account_name"] = fmt.Sprintf("account_name must be between 1 and %d characters", maxAccountNameLen)
	}

	if !accountNumberPattern.MatchString(input.AccountNumber) {
		details["account_number"] = "account_number must be 6 to 34 characters of digits, uppercase letters, or hyphens"
	}

	// Routing number is optional; domestic transfers carry one, IBAN-style
	// destinations do not.
	if input.RoutingNumber != "" && !routingNumberPattern.MatchString(input.RoutingNumber) {
		details["routing_number"] = "routing_number must be exactly 9 digits"
	}

	if input.GameID != "" {
		if _, err := uuid.Parse(input.GameID); err != nil {
			details["game_id"] = "game_id must be a valid UUID"
		}
	}

	if utf8.RuneCountInString(input.Description) > s.cfg.MaxDescriptionLen {
		details["description"] = fmt.Sprintf("description must be at most %d characters", s.cfg.MaxDescriptionLen)
	}

	return details
}

// majorUnits renders an integer minor-unit amount as the decimal string the
// bank API expects, honoring zero-decimal currencies.
func majorUnits(amountCents int64, currency string) string {
	exponent := int32(2)
	if exp, ok := currencyExponents[currency]; ok {
		exponent = exp
	}
	return decimal.NewFromInt(amountCents).Shift(-exponent).StringFixed(exponent)
}

func lastFour(accountNumber string) string {
	if len(accountNumber) <= 4 {
		return accountNumber
	}
	return accountNumber[len(accountNumber)-4:]
}
