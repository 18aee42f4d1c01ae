package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"adpilot-hq/adpilot/pkg/config"
	"adpilot-hq/adpilot/pkg/ledger"
)

// ChangeRequest is one change submitted to the platform.
type ChangeRequest struct {
	// AccountID is the platform account.
	AccountID string `json:"account_id"`

	// EntityID is the campaign or ad group to change.
	EntityID string `json:"entity_id"`

	// Lever is the dimension being changed.
	Lever ledger.Lever `json:"lever"`

	// NewValue is the target value. For the status lever, 0 means paused
	// and 1 means enabled.
	NewValue float64 `json:"new_value"`
}

// ChangeResult is the platform's confirmation of an applied change.
type ChangeResult struct {
	// Success is true when the platform confirmed the change.
	Success bool `json:"success"`

	// OldValue is the value before the change, as reported by the platform.
	OldValue float64 `json:"old_value"`

	// NewValue is the value after the change, as reported by the platform.
	NewValue float64 `json:"new_value"`
}

// Client applies changes to the advertising platform.
type Client interface {
	// Apply submits one change. A nil error means the platform confirmed
	// the change; errors are TransientError or PermanentError.
	Apply(ctx context.Context, req *ChangeRequest) (*ChangeResult, error)
}

// HTTPClient is the production Client backed by the platform's JSON API.
type HTTPClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPClient creates a platform client from configuration.
func NewHTTPClient(cfg *config.PlatformConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// Apply submits one change to the platform's change endpoint.
func (c *HTTPClient) Apply(ctx context.Context, req *ChangeRequest) (*ChangeResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, NewPermanentError("encode", err.Error())
	}

	url := fmt.Sprintf("%s/v1/accounts/%s/changes", c.endpoint, req.AccountID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewPermanentError("request", err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		// Network failures and timeouts are retryable.
		return nil, NewTransientError(err, 0)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var result ChangeResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, NewTransientError(fmt.Errorf("decode response: %w", err), 0)
		}
		if !result.Success {
			return nil, NewPermanentError("rejected", "platform reported failure")
		}
		return &result, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, NewTransientError(
			fmt.Errorf("platform returned %s", resp.Status),
			retryAfter(resp),
		)

	default:
		return nil, NewPermanentError(
			strconv.Itoa(resp.StatusCode),
			readErrorBody(resp.Body),
		)
	}
}

// retryAfter parses the Retry-After header, in seconds.
func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// readErrorBody extracts a short error description from a response body.
func readErrorBody(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 512))
	if err != nil || len(data) == 0 {
		return "no error detail"
	}
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &parsed) == nil && parsed.Error != "" {
		return parsed.Error
	}
	return string(data)
}
