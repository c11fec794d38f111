package webhooks

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/playforge/payments-backend/internal/ledger"
	internalwebhooks "github.com/playforge/payments-backend/internal/webhooks"
	"github.com/playforge/payments-backend/pkg/security"
)

type staticSecret string

func (s staticSecret) SigningSecret() string { return string(s) }

func newStripeHandler(t *testing.T, secret string) http.HandlerFunc {
	t.Helper()
	ledgerSvc, err := ledger.NewService(ledger.NewMemoryRepository(), nil)
	if err != nil {
		t.Fatalf("ledger.NewService error: %v", err)
	}
	processor := internalwebhooks.NewStripeProcessor(ledgerSvc, nil)
	guard := internalwebhooks.NewIdempotencyGuard(nil, "stripe", nil)
	return StripeWebhook(processor, staticSecret(secret), guard, nil, nil)
}

func TestStripeWebhook_UnconfiguredSecretIsServerError(t *testing.T) {
	handler := newStripeHandler(t, "")

	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", security.Sign("whsec_anything", payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("missing secret is an operator error, expected 500, got %d", rec.Code)
	}

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if envelope.Error.Code != "CONFIGURATION_ERROR" {
		t.Fatalf("expected CONFIGURATION_ERROR, got %q", envelope.Error.Code)
	}
}

func TestStripeWebhook_MalformedVerifiedPayload(t *testing.T) {
	handler := newStripeHandler(t, "whsec_test")

	payload := []byte(`{not json`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", security.Sign("whsec_test", payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed payload, got %d", rec.Code)
	}
}

func TestStripeWebhook_UnhandledEventTypeAcknowledged(t *testing.T) {
	handler := newStripeHandler(t, "whsec_test")

	payload := []byte(`{"id":"evt_2","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", security.Sign("whsec_test", payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unhandled event types must be acknowledged, got %d", rec.Code)
	}
	var ack map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil || !ack["received"] {
		t.Fatalf("expected {received:true}, got %s", rec.Body.String())
	}
}
