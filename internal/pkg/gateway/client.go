// Package gateway is the HTTP client for the bank payout gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cargolink/escrow-api/internal/pkg/money"
)

// Config holds gateway API configuration
type Config struct {
	BaseURL    string
	MerchantID string
	SecretKey  string
	Timeout    time.Duration
}

// Client talks to the bank gateway. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	config     Config
}

// PayoutRequest asks the gateway to move funds out to a bank destination.
// Reference is the gateway-side idempotency key: resubmitting the same
// reference returns the original payout.
type PayoutRequest struct {
	Reference   string
	Amount      decimal.Decimal
	Currency    money.Currency
	Destination string
}

// PayoutResult is the gateway's view of a payout.
type PayoutResult struct {
	Reference string
	Status    Status
	Reason    string
}

type payoutBody struct {
	Reference   string `json:"reference"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Destination string `json:"destination"`
}

type payoutResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// StatusError is a non-2xx gateway answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.Code, e.Body)
}

var ErrNotConfigured = errors.New("gateway client is not configured")

// NewClient creates new gateway API client
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
	}
}

// Payout submits a payout. A nil error means the gateway answered; the
// result may still be pending.
func (c *Client) Payout(ctx context.Context, req PayoutRequest) (*PayoutResult, error) {
	if strings.TrimSpace(req.Reference) == "" {
		return nil, fmt.Errorf("validation error: reference must be non-empty")
	}
	if err := money.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}

	body, err := json.Marshal(payoutBody{
		Reference:   req.Reference,
		Amount:      money.Format(req.Amount),
		Currency:    string(req.Currency),
		Destination: req.Destination,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode payout request: %w", err)
	}

	return c.do(ctx, http.MethodPost, "/api/v1/payouts", body)
}

// GetPayout re-queries the status of an earlier payout.
func (c *Client) GetPayout(ctx context.Context, reference string) (*PayoutResult, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, fmt.Errorf("validation error: reference must be non-empty")
	}
	return c.do(ctx, http.MethodGet, "/api/v1/payouts/"+url.PathEscape(reference), nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*PayoutResult, error) {
	if c == nil || c.httpClient == nil || strings.TrimSpace(c.config.BaseURL) == "" {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.MerchantID)
	if c.config.SecretKey != "" {
		httpReq.Header.Set(SignatureHeader, Sign(body, c.config.SecretKey))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("gateway call failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}

	var out payoutResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse gateway response: %w", err)
	}

	return &PayoutResult{
		Reference: out.Reference,
		Status:    MapStatus(out.Status),
		Reason:    out.Reason,
	}, nil
}

// IsRetryable reports whether a failed call is worth repeating: transport
// errors, timeouts, 429 and 5xx answers. 4xx answers are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
