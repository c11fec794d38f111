package webhooks

import (
	"io"
	"net/http"

	"github.com/playforge/payments-backend/api/responses"
	pkgerrors "github.com/playforge/payments-backend/pkg/errors"
	"github.com/playforge/payments-backend/pkg/logger"
	"github.com/playforge/payments-backend/pkg/security"
)

const maxWebhookBody = 1 << 20

// readVerifiedPayload reads the raw body and checks its HMAC before any
// parsing happens. Verification failures fail closed with a 400; a missing
// secret is an operator error and reports 500.
func readVerifiedPayload(w http.ResponseWriter, r *http.Request, header, secret string, logg *logger.Logger) ([]byte, bool) {
	ctx := r.Context()

	if secret == "" {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConfiguration, "webhook secret not configured"))
		return nil, false
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read request body"))
		return nil, false
	}

	signature := r.Header.Get(header)
	if signature == "" {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignature, "signature header missing"))
		return nil, false
	}

	if !security.VerifySignature(payload, signature, secret) {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignature, "signature verification failed"))
		return nil, false
	}

	return payload, true
}

// ack is the acknowledgment shape providers expect, sent without the
// standard success envelope.
func ack(w http.ResponseWriter) {
	responses.WriteRaw(w, http.StatusOK, map[string]bool{"received": true})
}
