package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kaamsetu-in/kaamsetu/internal/config"
)

// defaultFast2SMSBaseURL is the production bulk SMS endpoint.
const defaultFast2SMSBaseURL = "https://www.fast2sms.com/dev/bulkV2"

// Fast2SMSClient sends OTP codes through the Fast2SMS HTTP API.
type Fast2SMSClient struct {
	cfg        config.SMSConfig
	baseURL    string
	httpClient *http.Client
}

// NewFast2SMSClient constructs a Fast2SMSClient.
func NewFast2SMSClient(cfg config.SMSConfig) *Fast2SMSClient {
	return &Fast2SMSClient{
		cfg:        cfg,
		baseURL:    defaultFast2SMSBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL overrides the provider endpoint, used by tests.
func (c *Fast2SMSClient) WithBaseURL(baseURL string) *Fast2SMSClient {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// sendResponse is the provider response subset we inspect.
type sendResponse struct {
	Return  bool   `json:"return"`
	Message any    `json:"message"`
	Request string `json:"request_id"`
}

// SendOTP delivers a one-time code to the phone number.
func (c *Fast2SMSClient) SendOTP(ctx context.Context, phone, code string) error {
	if c == nil || strings.TrimSpace(c.cfg.APIKey) == "" {
		return fmt.Errorf("sms: api key not configured")
	}

	params := url.Values{}
	params.Set("route", "otp")
	params.Set("variables_values", code)
	params.Set("numbers", strings.TrimPrefix(phone, "+91"))

	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if errReq != nil {
		return fmt.Errorf("sms: build request: %w", errReq)
	}
	req.Header.Set("authorization", c.cfg.APIKey)

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return fmt.Errorf("sms: send otp: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sms: provider returned status %d", resp.StatusCode)
	}

	var parsed sendResponse
	if errDecode := json.NewDecoder(resp.Body).Decode(&parsed); errDecode != nil {
		return fmt.Errorf("sms: decode response: %w", errDecode)
	}
	if !parsed.Return {
		return fmt.Errorf("sms: provider rejected send: %v", parsed.Message)
	}
	return nil
}

var _ Sender = (*Fast2SMSClient)(nil)
