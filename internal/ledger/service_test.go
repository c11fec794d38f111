package ledger

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/playforge/payments-backend/pkg/db/models"
	"github.com/playforge/payments-backend/pkg/enums"
	pkgerrors "github.com/playforge/payments-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	svc, err := NewService(repo, nil)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc, repo
}

func strptr(s string) *string { return &s }

func TestService_CreateNormalizesCurrency(t *testing.T) {
	svc, _ := newTestService(t)

	metadata := json.RawMessage(`{"game_id":"abc"}`)
	txn, err := svc.Create(context.Background(), CreateTransactionInput{
		Rail:                enums.PaymentRailCard,
		AmountCents:         1000,
		Currency:            "GBP",
		Description:         "sword pack",
		Metadata:            metadata,
		ProviderReferenceID: strptr("pi_123"),
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if txn.Currency != "gbp" {
		t.Fatalf("expected lowercase currency, got %q", txn.Currency)
	}
	if txn.Status != enums.TransactionStatusPending {
		t.Fatalf("expected pending status, got %q", txn.Status)
	}
	if txn.ID == "" || txn.ID[:4] != models.TransactionIDPrefix {
		t.Fatalf("expected prefixed id, got %q", txn.ID)
	}
	if txn.CreatedAt.IsZero() || !txn.UpdatedAt.Equal(txn.CreatedAt) {
		t.Fatalf("timestamps not initialized: created=%v updated=%v", txn.CreatedAt, txn.UpdatedAt)
	}
}

func TestService_CreateRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Create(context.Background(), CreateTransactionInput{AmountCents: 0, Currency: "usd"}); err == nil {
		t.Fatal("zero amount should be rejected")
	}
	if _, err := svc.Create(context.Background(), CreateTransactionInput{AmountCents: 100, Currency: "us"}); err == nil {
		t.Fatal("short currency should be rejected")
	}
}

func TestService_ApplyStatusLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	txn, err := svc.Create(ctx, CreateTransactionInput{
		Rail:                enums.PaymentRailCard,
		AmountCents:         1000,
		Currency:            "usd",
		ProviderReferenceID: strptr("pi_life"),
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	outcome, err := svc.ApplyStatus(ctx, "pi_life", enums.TransactionStatusSucceeded, nil)
	if err != nil {
		t.Fatalf("ApplyStatus error: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %q", outcome)
	}

	stored, err := svc.GetByID(ctx, txn.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if stored.Status != enums.TransactionStatusSucceeded {
		t.Fatalf("expected succeeded, got %q", stored.Status)
	}
	firstUpdate := stored.UpdatedAt

	// Redelivery of the same terminal status is a strict no-op.
	outcome, err = svc.ApplyStatus(ctx, "pi_life", enums.TransactionStatusSucceeded, nil)
	if err != nil {
		t.Fatalf("redelivery error: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %q", outcome)
	}
	stored, _ = svc.GetByID(ctx, txn.ID)
	if !stored.UpdatedAt.Equal(firstUpdate) {
		t.Fatalf("duplicate delivery must not touch updated_at")
	}

	// A conflicting terminal status is ignored: first terminal wins.
	outcome, err = svc.ApplyStatus(ctx, "pi_life", enums.TransactionStatusFailed, strptr("card declined"))
	if err != nil {
		t.Fatalf("conflict error: %v", err)
	}
	if outcome != OutcomeConflict {
		t.Fatalf("expected conflict, got %q", outcome)
	}
	stored, _ = svc.GetByID(ctx, txn.ID)
	if stored.Status != enums.TransactionStatusSucceeded {
		t.Fatalf("conflicting event must not overwrite terminal state, got %q", stored.Status)
	}
}

func TestService_ApplyStatusUnknownReference(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	outcome, err := svc.ApplyStatus(ctx, "pi_ghost", enums.TransactionStatusSucceeded, nil)
	if err != nil {
		t.Fatalf("ApplyStatus error: %v", err)
	}
	if outcome != OutcomeUnknownReference {
		t.Fatalf("expected unknown reference, got %q", outcome)
	}

	txns, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(txns) != 0 {
		t.Fatalf("unknown reference must not create records, got %d", len(txns))
	}
}

func TestService_ApplyStatusRejectsNonTerminal(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ApplyStatus(context.Background(), "pi_x", enums.TransactionStatusPending, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_GetByIDNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetByID(context.Background(), "pay_missing")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
