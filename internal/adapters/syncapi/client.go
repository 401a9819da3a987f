// Package syncapi is the HTTP client for the sibling sync-action service.
// Each job type maps to one endpoint; this package only transports the call
// and classifies the response, it knows nothing about the sync semantics.
package syncapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const maxResponseBodyBytes = 4 * 1024 // 4KB to avoid storing excessively large diagnostics

// Payload is the request body sent to a sync action endpoint.
type Payload struct {
	AccountID  string `json:"accountId"`
	MerchantID string `json:"merchantId"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	Competence string `json:"competence,omitempty"`
	Mode       string `json:"mode,omitempty"`
}

// Call identifies one sync action invocation.
type Call struct {
	Path    string
	Payload Payload
}

// StatusError is a non-2xx response from a sync action.
type StatusError struct {
	Code int
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("sync action returned status %d", e.Code)
	}
	return fmt.Sprintf("sync action returned status %d: %s", e.Code, e.Body)
}

// Retryable reports whether the status indicates a transient upstream
// failure. Client errors (4xx) are not retryable; everything else is.
func (e *StatusError) Retryable() bool {
	return e.Code < 400 || e.Code >= 500
}

// IsRetryable classifies an invocation error. Network failures and 5xx
// responses are retryable; 4xx responses are not.
func IsRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Client invokes sync actions over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a sync action client.
func NewClient(opts ClientOptions) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("sync api base url is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		logger:  logger.With("component", "syncapi"),
	}, nil
}

// Invoke performs the sync action and returns nil on 2xx, a *StatusError on
// any other status, or the transport error.
func (c *Client) Invoke(ctx context.Context, call Call) error {
	if !strings.HasPrefix(call.Path, "/") {
		return fmt.Errorf("sync action path must start with /: %q", call.Path)
	}

	body, err := json.Marshal(call.Payload)
	if err != nil {
		return fmt.Errorf("marshal sync payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+call.Path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call sync action %s: %w", call.Path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.DebugContext(ctx, "sync action succeeded",
			"path", call.Path,
			"account_id", call.Payload.AccountID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodyBytes))
		return nil
	}

	return &StatusError{
		Code: resp.StatusCode,
		Body: readResponseBody(resp.Body),
	}
}

// readResponseBody reads at most maxResponseBodyBytes of the body for
// diagnostics, marking truncation.
func readResponseBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxResponseBodyBytes+1))
	if err != nil {
		return ""
	}
	if len(data) > maxResponseBodyBytes {
		return string(data[:maxResponseBodyBytes]) + "...(truncated)"
	}
	return strings.TrimSpace(string(data))
}
