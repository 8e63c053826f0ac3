package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/bizdesk/internal/feed"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 1 << 20

// Client is a thin HTTP client for the business-management REST API.
// It handles Bearer token authentication, JSON marshaling, failure
// classification and automatic retry with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	// sleep waits between 429 retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new REST client. The baseURL is the API root
// (e.g., http://localhost:5000/api) and token the session's bearer token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: 3,
		sleep:      sleepContext,
	}
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(ctx context.Context, op, path string, result any) error {
	return c.do(ctx, op, http.MethodGet, path, nil, result)
}

// Delete performs an HTTP DELETE request, discarding any response body.
func (c *Client) Delete(ctx context.Context, op, path string) error {
	return c.do(ctx, op, http.MethodDelete, path, nil, nil)
}

// do builds the request, handles auth, rate limiting with exponential
// backoff, JSON (de)serialization, and maps every failure to a feed.Kind.
func (c *Client) do(
	ctx context.Context,
	op string,
	method string,
	path string,
	body any,
	result any,
) error {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return feed.Errorf(feed.KindMalformed, op, "marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return feed.Errorf(feed.KindNetwork, op, "creating request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return feed.Errorf(feed.KindNetwork, op, "executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		if readErr != nil {
			return feed.Errorf(feed.KindNetwork, op, "reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)
			if err := c.sleep(ctx, retryAfterDuration(resp, attempt)); err != nil {
				return feed.Errorf(feed.KindNetwork, op, "waiting to retry: %w", err)
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return statusError(op, method, path, resp.StatusCode, respBody)
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return feed.Errorf(feed.KindMalformed, op, "unmarshaling response from %s %s: %w", method, path, err)
		}

		return nil
	}

	return &feed.Error{
		Kind: feed.KindNetwork,
		Op:   op,
		Err:  fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr),
	}
}

// statusError classifies a non-2xx response.
func statusError(op, method, path string, status int, body []byte) error {
	msg := errorMessage(body)

	var kind feed.Kind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = feed.KindUnauthorized
	case status == http.StatusNotFound:
		kind = feed.KindNotFound
	default:
		kind = feed.KindNetwork
	}

	return &feed.Error{
		Kind: kind,
		Op:   op,
		Err:  &StatusError{StatusCode: status, Method: method, Path: path, Message: msg},
	}
}

// errorMessage extracts {"error": "..."} from a response body, falling
// back to the raw text.
func errorMessage(body []byte) string {
	var apiErr ErrorResponse
	if json.Unmarshal(body, &apiErr) == nil {
		if apiErr.Error != "" {
			return apiErr.Error
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return strings.TrimSpace(string(body))
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d on %s %s", e.StatusCode, e.Method, e.Path)
	}
	return fmt.Sprintf("HTTP %d on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Message)
}

// IsStatus reports whether err wraps a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == code
	}
	return false
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
