package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the hex-encoded HMAC-SHA256 of payload under secret. It is the
// scheme both payment rails use for webhook authentication.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a hex-encoded HMAC-SHA256 signature against the raw,
// unparsed payload bytes. The comparison is constant-time and fails closed on
// malformed input: a non-hex or truncated signature never matches and never
// panics.
func VerifySignature(payload []byte, signatureHex, secret string) bool {
	if signatureHex == "" || secret == "" {
		return false
	}

	supplied, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	// hmac.Equal is constant-time and rejects length mismatches.
	return hmac.Equal(supplied, expected)
}
