package uploads

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Uploader stores a file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// defaultImgBBBaseURL is the production image host endpoint.
const defaultImgBBBaseURL = "https://api.imgbb.com/1/upload"

// ImgBBClient uploads images to the ImgBB hosting API.
type ImgBBClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewImgBBClient constructs an ImgBBClient.
func NewImgBBClient(apiKey string) *ImgBBClient {
	return &ImgBBClient{
		apiKey:     apiKey,
		baseURL:    defaultImgBBBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL overrides the host endpoint, used by tests.
func (c *ImgBBClient) WithBaseURL(baseURL string) *ImgBBClient {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// uploadResponse is the host response subset we use.
type uploadResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
	Success bool `json:"success"`
}

// Upload stores the image and returns its public URL.
func (c *ImgBBClient) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if c == nil || strings.TrimSpace(c.apiKey) == "" {
		return "", fmt.Errorf("uploads: api key not configured")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("uploads: empty file")
	}

	form := url.Values{}
	form.Set("key", c.apiKey)
	form.Set("name", name)
	form.Set("image", base64.StdEncoding.EncodeToString(data))

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBufferString(form.Encode()))
	if errReq != nil {
		return "", fmt.Errorf("uploads: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return "", fmt.Errorf("uploads: upload: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("uploads: host returned status %d", resp.StatusCode)
	}

	var parsed uploadResponse
	if errDecode := json.NewDecoder(resp.Body).Decode(&parsed); errDecode != nil {
		return "", fmt.Errorf("uploads: decode response: %w", errDecode)
	}
	if !parsed.Success || strings.TrimSpace(parsed.Data.URL) == "" {
		return "", fmt.Errorf("uploads: host rejected upload")
	}
	return parsed.Data.URL, nil
}

var _ Uploader = (*ImgBBClient)(nil)
