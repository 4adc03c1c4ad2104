package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/allopieces/push-dispatch/internal/metrics"
)

// ErrNotConfigured is returned when a dispatch is attempted without a
// gateway credential. Operator intervention is required; the caller
// cannot retry its way out of this.
var ErrNotConfigured = errors.New("push gateway credentials not configured")

// GatewayError is a non-success response from the push provider.
// It carries the provider's raw body for diagnostics.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("push gateway returned status %d: %s", e.StatusCode, e.Body)
}

// OneSignalClient submits notification payloads to the OneSignal REST API.
// One authenticated POST per dispatch; no batching across calls and no
// internal retry — once sent, a notification cannot be recalled.
type OneSignalClient struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// NewOneSignalClient creates a gateway client. apiKey may be empty, in
// which case every Submit fails with ErrNotConfigured.
func NewOneSignalClient(apiURL, apiKey string, timeout time.Duration) *OneSignalClient {
	return &OneSignalClient{
		apiURL:     apiURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type oneSignalResponse struct {
	ID         string `json:"id"`
	Recipients int    `json:"recipients"`
}

// Submit sends one payload to OneSignal and normalizes the outcome.
// Success means acceptance by the gateway, not confirmed delivery.
func (c *OneSignalClient) Submit(ctx context.Context, payload *Payload) (*DispatchResult, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncGatewayCall("unreachable")
		return nil, fmt.Errorf("failed to call push gateway: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.IncGatewayCall("error")
		return nil, &GatewayError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	var result oneSignalResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	metrics.IncGatewayCall("ok")

	return &DispatchResult{
		NotificationID: result.ID,
		Recipients:     result.Recipients,
	}, nil
}
