// Package razorpay is a minimal client for the Razorpay orders API and its
// checkout signature scheme.
package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/quillhq/quillfeed/pkg/config"
	"github.com/quillhq/quillfeed/pkg/logging"
	"github.com/quillhq/quillfeed/pkg/telemetry"
)

// maxErrorBody bounds how much of an error response is read
const maxErrorBody = 4 << 10

// OrderRequest is the body of an order creation call. Amount is in the
// smallest currency unit.
type OrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// Order is a provider order
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// APIError is an error response from the provider
type APIError struct {
	StatusCode  int
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("razorpay: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("razorpay: HTTP %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

// Client calls the provider's REST API
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
	logger    *zap.Logger
}

// New creates a new provider client
func New(cfg *config.PaymentConfig) (*Client, error) {
	if cfg.ProviderURL == "" {
		return nil, fmt.Errorf("payment_provider_url is required")
	}
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, fmt.Errorf("payment_key_id and payment_key_secret are required")
	}

	logger := logging.WithComponent("razorpay-client")

	client := &Client{
		baseURL:   strings.TrimRight(cfg.ProviderURL, "/"),
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		},
		logger: logger,
	}

	logger.Info("Payment provider client initialized", zap.String("url", client.baseURL))

	return client, nil
}

// CreateOrder mints a provider order. The call is not retried.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "razorpay.create_order")
	defer span.End()

	var order Order
	if err := c.do(ctx, http.MethodPost, "/orders", req, &order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("failed to create order: response has no order id")
	}
	return &order, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error *APIError `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Description = envelope.Error.Description
		}
		c.logger.Warn("Provider request failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code))
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID" keyed by secret,
// the signature the provider hands to checkout on success.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches Sign(secret, orderID,
// paymentID). The comparison is constant time.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	expected := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
