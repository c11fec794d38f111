package webhooks

import (
	"context"
	"encoding/json"

	"github.com/playforge/payments-backend/internal/ledger"
	"github.com/playforge/payments-backend/pkg/enums"
	pkgerrors "github.com/playforge/payments-backend/pkg/errors"
	"github.com/playforge/payments-backend/pkg/logger"
)

const (
	BankEventCompleted = "transfer.completed"
	BankEventFailed    = "transfer.failed"
)

// BankEvent is the partner bank's webhook envelope.
type BankEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		TransferID string `json:"transfer_id"`
		Reason     string `json:"reason"`
	} `json:"data"`
}

// BankProcessor reconciles bank-rail webhook events into the ledger.
type BankProcessor struct {
	ledger ledger.Service
	logg   *logger.Logger
}

// NewBankProcessor wires the bank-rail reconciler.
func NewBankProcessor(ledgerSvc ledger.Service, logg *logger.Logger) *BankProcessor {
	return &BankProcessor{ledger: ledgerSvc, logg: logg}
}

// ParseBankEvent decodes a verified payload into an event.
func ParseBankEvent(payload []byte) (*BankEvent, error) {
	var event BankEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload")
	}
	if event.Type == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing event type")
	}
	return &event, nil
}

// Process applies the event's terminal status to the referenced transfer.
func (p *BankProcessor) Process(ctx context.Context, event *BankEvent) (ledger.ApplyOutcome, error) {
	var status enums.TransactionStatus
	var failureReason *string

	switch event.Type {
	case BankEventCompleted:
		status = enums.TransactionStatusSucceeded
	case BankEventFailed:
		status = enums.TransactionStatusFailed
		if event.Data.Reason != "" {
			reason := event.Data.Reason
			failureReason = &reason
		}
	default:
		if p.logg != nil {
			p.logg.Info(p.logg.WithField(ctx, "event_type", event.Type), "ignoring unhandled bank event")
		}
		return OutcomeIgnored, nil
	}

	if event.Data.TransferID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing transfer id")
	}

	outcome, err := p.ledger.ApplyStatus(ctx, event.Data.TransferID, status, failureReason)
	if err != nil {
		return "", err
	}
	if p.logg != nil {
		ctx = p.logg.WithProviderReference(ctx, event.Data.TransferID)
		ctx = p.logg.WithFields(ctx, map[string]any{
			"event_type": event.Type,
			"outcome":    string(outcome),
		})
		p.logg.Info(ctx, "bank webhook reconciled")
	}
	return outcome, nil
}
