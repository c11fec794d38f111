package payments

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/playforge/payments-backend/internal/ledger"
	"github.com/playforge/payments-backend/pkg/config"
	"github.com/playforge/payments-backend/pkg/enums"
	pkgerrors "github.com/playforge/payments-backend/pkg/errors"
	stripeclient "github.com/playforge/payments-backend/pkg/stripe"
)

type fakeProvider struct {
	lastParams stripeclient.IntentParams
	calls      int
	intent     *stripeclient.Intent
	err        error
}

func (f *fakeProvider) CreatePaymentIntent(_ context.Context, params stripeclient.IntentParams) (*stripeclient.Intent, error) {
	f.calls++
	f.lastParams = params
	if f.err != nil {
		return nil, f.err
	}
	return f.intent, nil
}

func testPaymentsConfig() config.PaymentsConfig {
	return config.PaymentsConfig{
		MinAmountCents:    50,
		MaxAmountCents:    99999900,
		AllowedCurrencies: []string{"usd", "eur", "gbp", "aud", "cad", "jpy"},
		ProviderTimeout:   time.Second,
		MaxDescriptionLen: 500,
		MaxMetadataKeys:   20,
	}
}

func newTestService(t *testing.T, provider *fakeProvider) (Service, ledger.Service) {
	t.Helper()
	ledgerSvc, err := ledger.NewService(ledger.NewMemoryRepository(), nil)
	if err != nil {
		t.Fatalf("ledger.NewService error: %v", err)
	}
	svc, err := NewService(testPaymentsConfig(), provider, ledgerSvc, nil, nil)
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	return svc, ledgerSvc
}

func TestCreateIntent_CapsMetadataValues(t *testing.T) {
	provider := &fakeProvider{intent: &stripeclient.Intent{
		ID:           "pi_meta_cap",
		ClientSecret: "pi_meta_cap_secret",
		Status:       "requires_payment_method",
	}}
	svc, _ := newTestService(t, provider)

	result, err := svc.CreateIntent(context.Background(), CreateIntentInput{
		AmountCents: 1999,
		Currency:    "usd",
		Metadata:    map[string]string{"note": "  " + strings.Repeat("n", 600)},
	})
	if err != nil {
		t.Fatalf("CreateIntent error: %v", err)
	}

	if got := provider.lastParams.Metadata["note"]; got != strings.Repeat("n", 500) {
		t.Fatalf("metadata value must be trimmed and capped at 500 runes, got %d chars", len(got))
	}

	var meta map[string]string
	if err := json.Unmarshal(result.Transaction.Metadata, &meta); err != nil {
		t.Fatalf("metadata unmarshal: %v", err)
	}
	if len(meta["note"]) != 500 {
		t.Fatalf("stored metadata value not capped, got %d chars", len(meta["note"]))
	}
}

func TestCreateIntent_Success(t *testing.T) {
	provider := &fakeProvider{intent: &stripeclient.Intent{
		ID:           "pi_test_123",
		ClientSecret: "pi_test_123_secret_abc",
		Status:       "requires_payment_method",
	}}
	svc, ledgerSvc := newTestService(t, provider)

	result, err := svc.CreateIntent(context.Background(), CreateIntentInput{
		AmountCents: 1999,
		Currency:    "USD",
		GameID:      "0c5bb669-7bb0-4f0c-9b3f-66ad0a36f0dd",
		Description: "Starter pack",
		Metadata:    map[string]string{"sku": "starter"},
	})
	if err != nil {
		t.Fatalf("CreateIntent error: %v", err)
	}
	if result.ClientSecret != "pi_test_123_secret_abc" {
		t.Fatalf("unexpected client secret %q", result.ClientSecret)
	}

	txn := result.Transaction
	if txn.Status != enums.TransactionStatusPending {
		t.Fatalf("new intent must start pending, got %q", txn.Status)
	}
	if txn.Rail != enums.PaymentRailCard {
		t.Fatalf("expected card rail, got %q", txn.Rail)
	}
	if txn.Currency != "usd" {
		t.Fatalf("currency must be stored lowercase, got %q", txn.Currency)
	}
	if ref := txn.ProviderReference(); ref != "pi_test_123" {
		t.Fatalf("expected provider reference pi_test_123, got %q", ref)
	}

	var meta map[string]string
	if err := json.Unmarshal(txn.Metadata, &meta); err != nil {
		t.Fatalf("metadata unmarshal: %v", err)
	}
	if meta["game_id"] != "0c5bb669-7bb0-4f0c-9b3f-66ad0a36f0dd" || meta["sku"] != "starter" {
		t.Fatalf("unexpected metadata %v", meta)
	}

	if provider.lastParams.Currency != "usd" {
		t.Fatalf("provider must receive normalized currency, got %q", provider.lastParams.Currency)
	}

	stored, err := ledgerSvc.GetByID(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if stored.AmountCents != 1999 {
		t.Fatalf("stored amount %d", stored.AmountCents)
	}
}

func TestCreateIntent_AmountBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		valid  bool
	}{
		{"below minimum", 49, false},
		{"at minimum", 50, true},
		{"at maximum", 99999900, true},
		{"above maximum", 99999901, false},
		{"zero", 0, false},
		{"negative", -100, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider := &fakeProvider{intent: &stripeclient.Intent{ID: "pi_b", ClientSecret: "cs"}}
			svc, _ := newTestService(t, provider)

			_, err := svc.CreateIntent(context.Background(), CreateIntentInput{
				AmountCents: tc.amount,
				Currency:    "usd",
			})
			if tc.valid {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			domainErr := pkgerrors.As(err)
			if domainErr == nil || domainErr.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			details, ok := domainErr.Details().(map[string]string)
			if !ok || details["amount"] == "" {
				t.Fatalf("expected amount detail, got %v", domainErr.Details())
			}
			if provider.calls != 0 {
				t.Fatalf("provider must not be called on invalid input")
			}
		})
	}
}

func TestCreateIntent_ReportsAllViolations(t *testing.T) {
	provider := &fakeProvider{}
	svc, _ := newTestService(t, provider)

	metadata := make(map[string]string, 21)
	for i := 0; i < 21; i++ {
		metadata[strings.Repeat("k", i+1)] = "v"
	}

	_, err := svc.CreateIntent(context.Background(), CreateIntentInput{
		AmountCents: 1,
		Currency:    "xxx",
		GameID:      "not-a-uuid",
		Description: strings.Repeat("d", 501),
		Metadata:    metadata,
	})
	domainErr := pkgerrors.As(err)
	if domainErr == nil || domainErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := domainErr.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field map details, got %T", domainErr.Details())
	}
	for _, field := range []string{"amount", "currency", "game_id", "description", "metadata"} {
		if details[field] == "" {
			t.Fatalf("missing violation for %q in %v", field, details)
		}
	}
}

func TestCreateIntent_ProviderFailureLeavesNoRow(t *testing.T) {
	provider := &fakeProvider{err: pkgerrors.New(pkgerrors.CodeDependency, "stripe create payment intent failed")}
	svc, ledgerSvc := newTestService(t, provider)

	_, err := svc.CreateIntent(context.Background(), CreateIntentInput{
		AmountCents: 1000,
		Currency:    "eur",
	})
	domainErr := pkgerrors.As(err)
	if domainErr == nil || domainErr.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}

	txns, listErr := ledgerSvc.List(context.Background())
	if listErr != nil {
		t.Fatalf("List error: %v", listErr)
	}
	if len(txns) != 0 {
		t.Fatalf("no ledger row may exist after a provider failure, got %d", len(txns))
	}
}

func TestCreateIntent_EscapesDescriptionAtStorage(t *testing.T) {
	provider := &fakeProvider{intent: &stripeclient.Intent{ID: "pi_esc", ClientSecret: "cs"}}
	svc, _ := newTestService(t, provider)

	result, err := svc.CreateIntent(context.Background(), CreateIntentInput{
		AmountCents: 500,
		Currency:    "usd",
		Description: `<script>alert("x")</script>`,
	})
	if err != nil {
		t.Fatalf("CreateIntent error: %v", err)
	}
	if strings.Contains(result.Transaction.Description, "<script>") {
		t.Fatalf("stored description must be escaped, got %q", result.Transaction.Description)
	}
}

func TestGetPayment_RequiresID(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{})

	_, err := svc.GetPayment(context.Background(), "  ")
	domainErr := pkgerrors.As(err)
	if domainErr == nil || domainErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
