package webhooks

import (
	"net/http"

	"github.com/playforge/payments-backend/api/responses"
	"github.com/playforge/payments-backend/internal/ledger"
	internalwebhooks "github.com/playforge/payments-backend/internal/webhooks"
	"github.com/playforge/payments-backend/pkg/enums"
	pkgerrors "github.com/playforge/payments-backend/pkg/errors"
	"github.com/playforge/payments-backend/pkg/logger"
	"github.com/playforge/payments-backend/pkg/metrics"
)

const bankSignatureHeader = "X-Bank-Signature"

type bankSecretSource interface {
	SigningSecret() string
}

// BankWebhook reconciles bank-rail transfer events.
func BankWebhook(processor *internalwebhooks.BankProcessor, secrets bankSecretSource, guard *internalwebhooks.IdempotencyGuard, logg *logger.Logger, pm *metrics.PaymentMetrics) http.HandlerFunc {
	rail := enums.PaymentRailBank.String()

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if processor == nil || secrets == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook handler unavailable"))
			return
		}

		payload, ok := readVerifiedPayload(w, r, bankSignatureHeader, secrets.SigningSecret(), logg)
		if !ok {
			pm.IncWebhookEvent(rail, "unknown", "rejected")
			return
		}

		event, err := internalwebhooks.ParseBankEvent(payload)
		if err != nil {
			pm.IncWebhookEvent(rail, "unknown", "malformed")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if !guard.CheckAndMark(ctx, event.ID) {
			pm.IncWebhookEvent(rail, event.Type, "deduplicated")
			ack(w)
			return
		}

		outcome, err := processor.Process(ctx, event)
		if err != nil {
			guard.Release(ctx, event.ID)
			pm.IncWebhookEvent(rail, event.Type, "error")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		pm.IncWebhookEvent(rail, event.Type, string(outcome))
		if outcome == ledger.OutcomeUnknownReference && logg != nil {
			logg.Warn(logg.WithProviderReference(ctx, event.Data.TransferID), "webhook for unknown transfer")
		}
		ack(w)
	}
}
