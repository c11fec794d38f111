package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/playforge/payments-backend/pkg/enums"
)

// TransactionIDPrefix distinguishes internal transaction ids from provider ids.
const TransactionIDPrefix = "pay_"

// Transaction shadows a provider-side payment intent or bank transfer. Records
// are never deleted; failed and canceled rows persist for audit.
type Transaction struct {
	ID                  string                  `gorm:"column:id;primaryKey" json:"id"`
	ProviderReferenceID *string                 `gorm:"column:provider_reference_id;uniqueIndex" json:"provider_reference_id"`
	Rail                enums.PaymentRail       `gorm:"column:rail;not null;default:'card'" json:"rail"`
	AmountCents         int64                   `gorm:"column:amount_cents;not null" json:"amount_cents"`
	Currency            string                  `gorm:"column:currency;not null" json:"currency"`
	Status              enums.TransactionStatus `gorm:"column:status;not null;default:'pending'" json:"status"`
	Description         string                  `gorm:"column:description" json:"description"`
	FailureReason       *string                 `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	Metadata            json.RawMessage         `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt           time.Time               `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time               `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// NewTransactionID mints a prefixed opaque identifier.
func NewTransactionID() string {
	return fmt.Sprintf("%s%s", TransactionIDPrefix, uuid.NewString())
}

// ProviderReference returns the provider id or "" when the provider call has
// not completed yet.
func (t *Transaction) ProviderReference() string {
	if t == nil || t.ProviderReferenceID == nil {
		return ""
	}
	return *t.ProviderReferenceID
}
