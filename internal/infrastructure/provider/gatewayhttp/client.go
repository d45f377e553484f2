// Package gatewayhttp holds the JSON-over-HTTP plumbing shared by the
// payment gateway adapters.
package gatewayhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clinicore/billing-engine/internal/domain/provider"
	"go.uber.org/zap"
)

// ErrorDecoder extracts a provider code and message from an error body
type ErrorDecoder func(body []byte) (code, message string)

// Client sends authenticated JSON requests to one provider
type Client struct {
	Provider    string
	BaseURL     string
	Headers     map[string]string
	HTTP        *http.Client
	DecodeError ErrorDecoder
	Logger      *zap.Logger
}

// NewClient creates a client with the given per-request timeout
func NewClient(providerName, baseURL string, timeout time.Duration, headers map[string]string, decode ErrorDecoder, logger *zap.Logger) *Client {
	return &Client{
		Provider:    providerName,
		BaseURL:     baseURL,
		Headers:     headers,
		HTTP:        &http.Client{Timeout: timeout},
		DecodeError: decode,
		Logger:      logger,
	}
}

// Do sends body as JSON and decodes a 2xx response into out. Failures are
// returned as *provider.ProviderError.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return &provider.ProviderError{
				Provider: c.Provider,
				Code:     "MARSHAL_ERROR",
				Message:  "Failed to prepare request",
				Details:  err.Error(),
			}
		}
		reader = bytes.NewReader(jsonBody)
	}

	url := c.BaseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &provider.ProviderError{
			Provider: c.Provider,
			Code:     "REQUEST_ERROR",
			Message:  "Failed to create request",
			Details:  err.Error(),
		}
	}
	for k, v := range c.Headers {
		httpReq.Header.Set(k, v)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		c.Logger.Warn("Provider request failed",
			zap.String("provider", c.Provider),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return &provider.ProviderError{
			Provider:  c.Provider,
			Code:      "API_ERROR",
			Message:   "Provider API request failed",
			Details:   err.Error(),
			Temporary: true,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &provider.ProviderError{
			Provider:  c.Provider,
			Code:      "RESPONSE_ERROR",
			Message:   "Failed to read response",
			Details:   err.Error(),
			Temporary: true,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code, message := "", http.StatusText(resp.StatusCode)
		if c.DecodeError != nil {
			if dc, dm := c.DecodeError(respBody); dc != "" || dm != "" {
				code, message = dc, dm
			}
		}

		c.Logger.Error("Provider returned error",
			zap.String("provider", c.Provider),
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("code", code))

		return &provider.ProviderError{
			Provider:   c.Provider,
			Code:       code,
			Message:    message,
			StatusCode: resp.StatusCode,
			Details:    string(respBody),
		}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &provider.ProviderError{
			Provider:   c.Provider,
			Code:       "PARSE_ERROR",
			Message:    "Failed to parse response",
			StatusCode: resp.StatusCode,
			Details:    fmt.Sprintf("%v: %s", err, respBody),
		}
	}
	return nil
}
