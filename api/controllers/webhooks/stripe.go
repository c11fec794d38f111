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

const stripeSignatureHeader = "Stripe-Signature"

type stripeSecretSource interface {
	SigningSecret() string
}

// StripeWebhook reconciles card-rail events. The raw body is verified
// before parsing; every verified event is acknowledged, including unknown
// references and duplicates.
func StripeWebhook(processor *internalwebhooks.StripeProcessor, secrets stripeSecretSource, guard *internalwebhooks.IdempotencyGuard, logg *logger.Logger, pm *metrics.PaymentMetrics) http.HandlerFunc {
	rail := enums.PaymentRailCard.String()

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if processor == nil || secrets == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook handler unavailable"))
			return
		}

		payload, ok := readVerifiedPayload(w, r, stripeSignatureHeader, secrets.SigningSecret(), logg)
		if !ok {
			pm.IncWebhookEvent(rail, "unknown", "rejected")
			return
		}

		event, err := internalwebhooks.ParseStripeEvent(payload)
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
			logg.Warn(logg.WithProviderReference(ctx, event.Data.Object.ID), "webhook for unknown payment intent")
		}
		ack(w)
	}
}
