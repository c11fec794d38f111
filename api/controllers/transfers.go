package controllers

import (
	"net/http"

	"github.com/playforge/payments-backend/api/responses"
	"github.com/playforge/payments-backend/api/validators"
	"github.com/playforge/payments-backend/internal/transfers"
	"github.com/playforge/payments-backend/pkg/logger"
)

type initiateTransferResponse struct {
	TransactionID       string `json:"transaction_id"`
	ProviderReferenceID string `json:"provider_reference_id"`
	AmountCents         int64  `json:"amount_cents"`
	Currency            string `json:"currency"`
	Status              string `json:"status"`
}

// InitiateBankTransfer submits a transfer to the partner bank and records
// its ledger shadow.
func InitiateBankTransfer(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var input transfers.InitiateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		txn, err := svc.Initiate(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, initiateTransferResponse{
			TransactionID:       txn.ID,
			ProviderReferenceID: txn.ProviderReference(),
			AmountCents:         txn.AmountCents,
			Currency:            txn.Currency,
			Status:              txn.Status.String(),
		})
	}
}
