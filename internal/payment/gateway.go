package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kaamsetu-in/kaamsetu/internal/config"
)

// OrderCreator creates payment orders at the gateway.
type OrderCreator interface {
	CreateOrder(ctx context.Context, amount float64, currency, receipt string) (orderID string, err error)
}

// defaultGatewayBaseURL is the production order API endpoint.
const defaultGatewayBaseURL = "https://api.razorpay.com/v1"

// GatewayClient talks to the Razorpay-compatible order API.
type GatewayClient struct {
	cfg        config.GatewayConfig
	baseURL    string
	httpClient *http.Client
}

// NewGatewayClient constructs a GatewayClient with the given credentials.
func NewGatewayClient(cfg config.GatewayConfig) *GatewayClient {
	return &GatewayClient{
		cfg:        cfg,
		baseURL:    defaultGatewayBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithBaseURL overrides the gateway endpoint, used by tests.
func (c *GatewayClient) WithBaseURL(baseURL string) *GatewayClient {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// createOrderRequest is the gateway order creation body.
type createOrderRequest struct {
	Amount   int64  `json:"amount"` // Smallest currency unit.
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// createOrderResponse is the gateway order creation response subset we use.
type createOrderResponse struct {
	ID string `json:"id"`
}

// CreateOrder registers an order at the gateway and returns its order ID.
func (c *GatewayClient) CreateOrder(ctx context.Context, amount float64, currency, receipt string) (string, error) {
	if c == nil || c.cfg.KeyID == "" || c.cfg.KeySecret == "" {
		return "", fmt.Errorf("payment: gateway credentials not configured")
	}

	body, errMarshal := json.Marshal(createOrderRequest{
		Amount:   int64(amount * 100),
		Currency: currency,
		Receipt:  receipt,
	})
	if errMarshal != nil {
		return "", fmt.Errorf("payment: marshal order: %w", errMarshal)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if errReq != nil {
		return "", fmt.Errorf("payment: build order request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return "", fmt.Errorf("payment: create order: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("payment: gateway returned status %d", resp.StatusCode)
	}

	var parsed createOrderResponse
	if errDecode := json.NewDecoder(resp.Body).Decode(&parsed); errDecode != nil {
		return "", fmt.Errorf("payment: decode order response: %w", errDecode)
	}
	if strings.TrimSpace(parsed.ID) == "" {
		return "", fmt.Errorf("payment: gateway returned empty order id")
	}
	return parsed.ID, nil
}

var _ OrderCreator = (*GatewayClient)(nil)
