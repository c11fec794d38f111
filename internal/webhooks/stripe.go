package webhooks

import (
	"context"
	"encoding/json"

	"github.com/playforge/payments-backend/internal/ledger"
	"github.com/playforge/payments-backend/pkg/enums"
	pkgerrors "github.com/playforge/payments-backend/pkg/errors"
	"github.com/playforge/payments-backend/pkg/logger"
)

// Stripe event types the reconciler acts on. Anything else is acknowledged
// and ignored.
const (
	StripeEventSucceeded = "payment_intent.succeeded"
	StripeEventFailed    = "payment_intent.payment_failed"
	StripeEventCanceled  = "payment_intent.canceled"
)

// OutcomeIgnored marks an event type the reconciler does not act on.
const OutcomeIgnored ledger.ApplyOutcome = "ignored"

// StripeEvent is the subset of Stripe's webhook envelope the reconciler
// reads. The raw body was already signature-verified before parsing.
type StripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID               string `json:"id"`
			LastPaymentError *struct {
				Message string `json:"message"`
			} `json:"last_payment_error"`
		} `json:"object"`
	} `json:"data"`
}

// StripeProcessor reconciles card-rail webhook events into the ledger.
type StripeProcessor struct {
	ledger ledger.Service
	logg   *logger.Logger
}

// NewStripeProcessor wires the card-rail reconciler.
func NewStripeProcessor(ledgerSvc ledger.Service, logg *logger.Logger) *StripeProcessor {
	return &StripeProcessor{ledger: ledgerSvc, logg: logg}
}

// ParseStripeEvent decodes a verified payload into an event.
func ParseStripeEvent(payload []byte) (*StripeEvent, error) {
	var event StripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload")
	}
	if event.Type == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing event type")
	}
	return &event, nil
}

// Process applies the event's terminal status to the referenced transaction.
func (p *StripeProcessor) Process(ctx context.Context, event *StripeEvent) (ledger.ApplyOutcome, error) {
	var status enums.TransactionStatus
	var failureReason *string

	switch event.Type {
	case StripeEventSucceeded:
		status = enums.TransactionStatusSucceeded
	case StripeEventFailed:
		status = enums.TransactionStatusFailed
		if event.Data.Object.LastPaymentError != nil && event.Data.Object.LastPaymentError.Message != "" {
			msg := event.Data.Object.LastPaymentError.Message
			failureReason = &msg
		}
	case StripeEventCanceled:
		status = enums.TransactionStatusCanceled
	default:
		if p.logg != nil {
			p.logg.Info(p.logg.WithField(ctx, "event_type", event.Type), "ignoring unhandled stripe event")
		}
		return OutcomeIgnored, nil
	}

	if event.Data.Object.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing payment intent id")
	}

	outcome, err := p.ledger.ApplyStatus(ctx, event.Data.Object.ID, status, failureReason)
	if err != nil {
		return "", err
	}
	if p.logg != nil {
		ctx = p.logg.WithProviderReference(ctx, event.Data.Object.ID)
		ctx = p.logg.WithFields(ctx, map[string]any{
			"event_type": event.Type,
			"outcome":    string(outcome),
		})
		p.logg.Info(ctx, "stripe webhook reconciled")
	}
	return outcome, nil
}
