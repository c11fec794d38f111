package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/playforge/payments-backend/pkg/db/models"
	"github.com/playforge/payments-backend/pkg/enums"
	pkgerrors "github.com/playforge/payments-backend/pkg/errors"
	"github.com/playforge/payments-backend/pkg/logger"
)

// ApplyOutcome describes what a reconciliation transition did.
type ApplyOutcome string

const (
	// OutcomeApplied means the record moved from pending to the event status.
	OutcomeApplied ApplyOutcome = "applied"
	// OutcomeDuplicate means the record already carried the event status; the
	// redelivery changed nothing, including updated_at.
	OutcomeDuplicate ApplyOutcome = "duplicate"
	// OutcomeConflict means a different terminal status was already applied.
	// First terminal wins; the conflicting event is logged and ignored.
	OutcomeConflict ApplyOutcome = "conflict"
	// OutcomeUnknownReference means no transaction tracks the reference.
	OutcomeUnknownReference ApplyOutcome = "unknown_reference"
)

// Service owns all Transaction mutations. Reconciliation goes through
// ApplyStatus exclusively so the absorbing-terminal-state rule holds no
// matter how webhooks are interleaved or redelivered.
type Service interface {
	Create(ctx context.Context, input CreateTransactionInput) (*models.Transaction, error)
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	List(ctx context.Context) ([]models.Transaction, error)
	ApplyStatus(ctx context.Context, providerReferenceID string, status enums.TransactionStatus, failureReason *string) (ApplyOutcome, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// CreateTransactionInput captures the immutable data a transaction requires.
type CreateTransactionInput struct {
	Rail                enums.PaymentRail
	AmountCents         int64
	Currency            string
	Description         string
	Metadata            json.RawMessage
	ProviderReferenceID *string
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateTransactionInput) (*models.Transaction, error) {
	if input.AmountCents <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %d", input.AmountCents)
	}
	if len(input.Currency) != 3 {
		return nil, fmt.Errorf("currency must be a 3-letter code, got %q", input.Currency)
	}

	txn := &models.Transaction{
		Rail:                input.Rail,
		AmountCents:         input.AmountCents,
		Currency:            input.Currency,
		Description:         input.Description,
		Metadata:            input.Metadata,
		ProviderReferenceID: input.ProviderReferenceID,
	}

	if err := s.repo.Create(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	txn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return txn, nil
}

func (s *service) List(ctx context.Context) ([]models.Transaction, error) {
	return s.repo.List(ctx)
}

func (s *service) ApplyStatus(ctx context.Context, providerReferenceID string, status enums.TransactionStatus, failureReason *string) (ApplyOutcome, error) {
	if providerReferenceID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "provider reference id is required")
	}
	if !status.IsTerminal() {
		return "", pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("status %q is not a terminal reconciliation state", status))
	}

	applied, err := s.repo.TransitionStatus(ctx, providerReferenceID, StatusUpdate{
		Status:        status,
		FailureReason: failureReason,
	})
	if err != nil {
		return "", err
	}
	if applied {
		return OutcomeApplied, nil
	}

	// The guarded update touched nothing: the record is unknown or already
	// terminal. Distinguish the two for callers and logs.
	existing, err := s.repo.FindByProviderReferenceID(ctx, providerReferenceID)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return OutcomeUnknownReference, nil
	}
	if existing.Status == status {
		return OutcomeDuplicate, nil
	}

	if s.logg != nil {
		lctx := s.logg.WithFields(ctx, map[string]any{
			"provider_reference_id": providerReferenceID,
			"stored_status":         existing.Status.String(),
			"event_status":          status.String(),
		})
		s.logg.Warn(lctx, "conflicting terminal transition ignored")
	}
	return OutcomeConflict, nil
}
