package security

import (
	"strings"
	"testing"
)

func TestVerifySignatureRoundTrip(t *testing.T) {
	payload := []byte(`{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_123"}}}`)
	secret := "whsec_test"

	sig := Sign(secret, payload)
	if !VerifySignature(payload, sig, secret) {
		t.Fatal("expected signature over the exact payload to verify")
	}
}

func TestVerifySignatureRejectsMutations(t *testing.T) {
	payload := []byte(`{"amount":1000}`)
	secret := "secret"
	sig := Sign(secret, payload)

	// Single-byte payload mutation.
	mutated := []byte(`{"amount":1001}`)
	if VerifySignature(mutated, sig, secret) {
		t.Fatal("mutated payload must not verify")
	}

	// Single-character signature mutation.
	flipped := flipHexChar(sig)
	if VerifySignature(payload, flipped, secret) {
		t.Fatal("mutated signature must not verify")
	}

	// Wrong secret.
	if VerifySignature(payload, sig, "other-secret") {
		t.Fatal("signature under a different secret must not verify")
	}
}

func TestVerifySignatureFailsClosed(t *testing.T) {
	payload := []byte(`{}`)
	secret := "secret"

	cases := map[string]string{
		"empty":        "",
		"non-hex":      "not-a-hex-string!!",
		"odd length":   Sign(secret, payload)[:15],
		"wrong length": Sign(secret, payload)[:16],
	}
	for name, sig := range cases {
		if VerifySignature(payload, sig, secret) {
			t.Fatalf("%s signature should fail verification", name)
		}
	}

	if VerifySignature(payload, Sign(secret, payload), "") {
		t.Fatal("empty secret should fail verification")
	}
}

func flipHexChar(sig string) string {
	replacement := "0"
	if strings.HasPrefix(sig, "0") {
		replacement = "1"
	}
	return replacement + sig[1:]
}
