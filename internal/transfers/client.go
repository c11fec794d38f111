package transfers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/playforge/payments-backend/pkg/config"
	pkgerrors "github.com/playforge/payments-backend/pkg/errors"
	"github.com/playforge/payments-backend/pkg/logger"
	"github.com/playforge/payments-backend/pkg/metrics"
)

// Client talks to the partner bank's transfer API over HTTPS with bearer
// auth. Every call is bounded by the configured timeout.
type Client struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	sourceAccount string
	http          *http.Client
	logg          *logger.Logger
	metrics       *metrics.PaymentMetrics
}

// NewClient validates the bank configuration and builds the API client.
func NewClient(cfg config.BankConfig, logg *logger.Logger, pm *metrics.PaymentMetrics) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("bank api url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("bank api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:       baseURL,
		apiKey:        strings.TrimSpace(cfg.APIKey),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		sourceAccount: strings.TrimSpace(cfg.SourceAccount),
		http:          &http.Client{Timeout: timeout},
		logg:          logg,
		metrics:       pm,
	}, nil
}

// Destination identifies the receiving account on the bank's side.
type Destination struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	RoutingNumber string `json:"routing_number,omitempty"`
}

// TransferRequest is the bank API wire format. Amount is a decimal string
// in major units because that is what the bank accepts.
type TransferRequest struct {
	SourceAccount string      `json:"source_account,omitempty"`
	Destination   Destination `json:"destination"`
	Amount        string      `json:"amount"`
	Currency      string      `json:"currency"`
	Reference     string      `json:"reference,omitempty"`
}

// Transfer is the bank's accepted-transfer record.
type Transfer struct {
	ID     string `json:"transfer_id"`
	Status string `json:"status"`
}

type bankErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// CreateTransfer submits a transfer. Any non-2xx reply surfaces as a
// gateway error so callers never mistake a bank outage for bad input.
func (c *Client) CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	if req.SourceAccount == "" {
		req.SourceAccount = c.sourceAccount
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode transfer request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transfers", bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build transfer request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	c.metrics.ObserveProviderCall("bank", "create_transfer", time.Since(start))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bank transfer request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read bank response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg := bankErrorMessage(payload)
		if c.logg != nil {
			ctx = c.logg.WithFields(ctx, map[string]any{
				"status_code": resp.StatusCode,
				"operation":   "create_transfer",
			})
			c.logg.Error(ctx, "bank transfer rejected", fmt.Errorf("%s", msg))
		}
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("bank transfer failed with status %d: %s", resp.StatusCode, msg))
	}

	var transfer Transfer
	if err := json.Unmarshal(payload, &transfer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode bank response")
	}
	if transfer.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "bank response missing transfer id")
	}

	if c.logg != nil {
		c.logg.Info(c.logg.WithProviderReference(ctx, transfer.ID), "bank transfer accepted")
	}
	return &transfer, nil
}

// SigningSecret returns the shared secret for bank webhook verification.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

func bankErrorMessage(payload []byte) string {
	var body bankErrorBody
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return "unexpected bank error"
}
