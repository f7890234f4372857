// Package api is the REST client for the ticket backend: paginated ticket
// listing, single-ticket fetch, message history and ticket mutations.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chatwoot/ticketsync/internal/debug"
	"github.com/chatwoot/ticketsync/internal/validation"
)

const DefaultTimeout = 30 * time.Second

// Client talks to the ticket backend.
//
// The circuit breaker state lives as long as the client. Use
// ResetCircuitBreaker when reusing a client across logical sessions.
type Client struct {
	BaseURL     string
	APIToken    string
	HTTP        *http.Client
	UserAgent   string
	RetryConfig RetryConfig

	skipURLValidation bool
	circuitBreaker    *circuitBreaker
	validatedBaseURL  bool
	validateMu        sync.Mutex
	rateLimitMu       sync.Mutex
	lastRateLimit     *RateLimitInfo
}

var validateBaseURL = validation.ValidateBaseURL

// New creates a client for the backend at baseURL.
func New(baseURL, token string) *Client {
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		baseTransport = &http.Transport{}
	}
	transport := baseTransport.Clone()
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	} else {
		transport.TLSClientConfig = transport.TLSClientConfig.Clone()
	}
	transport.TLSClientConfig.MinVersion = tls.VersionTLS12

	retryCfg := DefaultRetryConfig()
	return &Client{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		APIToken:       token,
		RetryConfig:    retryCfg,
		HTTP:           &http.Client{Timeout: DefaultTimeout, Transport: transport},
		circuitBreaker: newCircuitBreaker(retryCfg),
	}
}

// ResetCircuitBreaker clears failure counts and closes the circuit.
func (c *Client) ResetCircuitBreaker() {
	if c.circuitBreaker != nil {
		c.circuitBreaker.reset()
	}
}

// SetRetryConfig updates the retry configuration and aligns circuit breaker settings.
func (c *Client) SetRetryConfig(cfg RetryConfig) {
	c.RetryConfig = cfg
	if c.circuitBreaker != nil {
		c.circuitBreaker.mu.Lock()
		c.circuitBreaker.threshold = cfg.CircuitBreakerThreshold
		c.circuitBreaker.resetTime = cfg.CircuitBreakerResetTime
		c.circuitBreaker.mu.Unlock()
	}
}

func (c *Client) ensureBaseURLValidated() error {
	if c.skipURLValidation {
		return nil
	}
	c.validateMu.Lock()
	defer c.validateMu.Unlock()
	if c.validatedBaseURL {
		return nil
	}
	if err := validateBaseURL(c.BaseURL); err != nil {
		return fmt.Errorf("URL validation failed: %w", err)
	}
	c.validatedBaseURL = true
	return nil
}

func (c *Client) apiPath(path string) string {
	if path != "" && path[0] != '/' {
		path = "/" + path
	}
	return c.BaseURL + "/api/v1" + path
}

// do performs an HTTP request and decodes the JSON response into result.
func (c *Client) do(ctx context.Context, method, path string, body any, result any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}
	respBody, err := c.execute(ctx, method, c.apiPath(path), payload)
	if err != nil {
		return err
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unexpected API response format (JSON decode failed): %w", err)
		}
	}
	return nil
}

// execute runs the request with 429 backoff, 5xx retries for idempotent
// methods and the circuit breaker.
func (c *Client) execute(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	if c.circuitBreaker != nil && c.circuitBreaker.isOpen() {
		return nil, &CircuitBreakerError{}
	}
	if err := c.ensureBaseURLValidated(); err != nil {
		return nil, err
	}

	idempotent := method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
	var retries429, retries5xx int

	for attempt := 1; ; attempt++ {
		start := time.Now()
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if c.APIToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIToken)
		}
		if c.UserAgent != "" {
			req.Header.Set("User-Agent", c.UserAgent)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTP.Do(req)
		if err != nil {
			if debug.IsEnabled(ctx) {
				slog.Debug("request failed", "method", method, "url", url, "attempt", attempt, "error", err)
			}
			return nil, fmt.Errorf("request failed: %w", err)
		}
		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		c.recordRateLimit(resp.Header)
		if debug.IsEnabled(ctx) {
			slog.Debug("request complete", "method", method, "url", url, "status", resp.StatusCode, "attempt", attempt, "duration", time.Since(start))
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter, hasRetryAfter := retryAfterDuration(resp.Header)
			if !hasRetryAfter {
				retryAfter = c.RetryConfig.RateLimitBaseDelay * time.Duration(1<<retries429)
			}
			if !idempotent || retries429 >= c.RetryConfig.MaxRateLimitRetries {
				return nil, &RateLimitError{RetryAfter: retryAfter}
			}
			slog.Info("rate limited, retrying", "delay", retryAfter, "attempt", retries429+1)
			if err := sleepWithContext(ctx, retryAfter); err != nil {
				return nil, err
			}
			retries429++
			continue

		case resp.StatusCode >= 500:
			if c.circuitBreaker != nil {
				c.circuitBreaker.recordFailure()
			}
			if idempotent && retries5xx < c.RetryConfig.Max5xxRetries {
				slog.Info("server error, retrying", "status", resp.StatusCode)
				if err := sleepWithContext(ctx, c.RetryConfig.ServerErrorRetryDelay); err != nil {
					return nil, err
				}
				retries5xx++
				continue
			}
			return nil, c.apiError(resp, respBody)

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, &AuthError{StatusCode: resp.StatusCode, Reason: sanitizeErrorBody(string(respBody))}

		case resp.StatusCode >= 400:
			return nil, c.apiError(resp, respBody)
		}

		if c.circuitBreaker != nil {
			c.circuitBreaker.recordSuccess()
		}
		return respBody, nil
	}
}

func (c *Client) apiError(resp *http.Response, body []byte) *APIError {
	return &APIError{
		StatusCode: resp.StatusCode,
		Body:       sanitizeErrorBody(string(body)),
		RequestID:  resp.Header.Get("X-Request-Id"),
	}
}

// sanitizeErrorBody extracts the error message from a response without
// echoing arbitrary payloads.
func sanitizeErrorBody(body string) string {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Errors  any    `json:"errors"`
	}
	if err := json.Unmarshal([]byte(body), &errResp); err != nil {
		return "API request failed (response body redacted)"
	}
	result := errResp.Error
	if result == "" {
		result = errResp.Message
	}
	if details := formatValidationErrors(errResp.Errors); details != "" {
		if result != "" {
			return result + "\nValidation errors:\n" + details
		}
		return "Validation errors:\n" + details
	}
	if result == "" {
		return "API request failed (response body redacted)"
	}
	return result
}

// formatValidationErrors accepts {"field": "msg"} and {"field": ["msg", ...]}.
func formatValidationErrors(errs any) string {
	errMap, ok := errs.(map[string]any)
	if !ok || len(errMap) == 0 {
		return ""
	}
	var lines []string
	for field, value := range errMap {
		switch v := value.(type) {
		case string:
			lines = append(lines, fmt.Sprintf("  %s: %s", field, v))
		case []any:
			for _, msg := range v {
				if s, ok := msg.(string); ok {
					lines = append(lines, fmt.Sprintf("  %s: %s", field, s))
				}
			}
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
