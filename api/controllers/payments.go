package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playforge/payments-backend/api/responses"
	"github.com/playforge/payments-backend/api/validators"
	"github.com/playforge/payments-backend/internal/payments"
	"github.com/playforge/payments-backend/pkg/logger"
)

type stripeKeySource interface {
	PublishableKey() string
	Environment() string
}

type createIntentResponse struct {
	TransactionID       string `json:"transaction_id"`
	ProviderReferenceID string `json:"provider_reference_id"`
	ClientSecret        string `json:"client_secret"`
	AmountCents         int64  `json:"amount_cents"`
	Currency            string `json:"currency"`
	Status              string `json:"status"`
}

// CreatePaymentIntent creates a provider-side intent and its ledger shadow.
func CreatePaymentIntent(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var input payments.CreateIntentInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.CreateIntent(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		txn := result.Transaction
		responses.WriteSuccessStatus(w, http.StatusCreated, createIntentResponse{
			TransactionID:       txn.ID,
			ProviderReferenceID: txn.ProviderReference(),
			ClientSecret:        result.ClientSecret,
			AmountCents:         txn.AmountCents,
			Currency:            txn.Currency,
			Status:              txn.Status.String(),
		})
	}
}

// GetPayment returns one ledger record by transaction id.
func GetPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		txn, err := svc.GetPayment(ctx, chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

// ListPayments returns the ledger newest first.
func ListPayments(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		txns, err := svc.ListPayments(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, txns)
	}
}

// PaymentsConfig exposes the publishable key the storefront embeds.
func PaymentsConfig(keys stripeKeySource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{
			"publishable_key": keys.PublishableKey(),
			"environment":     keys.Environment(),
		})
	}
}
