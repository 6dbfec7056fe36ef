// Package net provides HTTP client functionality with retry, timeout, and circuit breaker patterns
// for making requests to Stellar services (Horizon, anchor servers).
//
// The Client struct offers configurable timeout, retry attempts, and exponential backoff.
// It includes a simple circuit breaker to prevent cascading failures when services are down.
//
// Example usage:
//
//	client := net.NewClient(
//	    net.WithTimeout(20*time.Second),
//	    net.WithMaxRetries(5),
//	    net.WithRetryBackoff(2*time.Second),
//	)
//	resp, err := client.Get(ctx, "https://testanchor.stellar.org/sep24/info")
package net

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/stellar/go/support/log"

	"github.com/marwen-abid/wallet-sdk-go/errors"
)

// Default configuration values
const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRetries   = 3
	defaultBackoff      = 1 * time.Second
	defaultFailureLimit = 5
	defaultResetTimeout = 60 * time.Second
	maxErrorBodySize    = 4096
)

// Client is an HTTP client with retry, timeout, and circuit breaker capabilities.
type Client struct {
	httpClient     *http.Client
	maxRetries     int
	retryBackoff   time.Duration
	circuitBreaker *circuitBreaker
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout (default: 30s).
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithMaxRetries sets the maximum number of retry attempts (default: 3).
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryBackoff sets the base duration for exponential backoff (default: 1s).
func WithRetryBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryBackoff = d
	}
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultBackoff,
		circuitBreaker: &circuitBreaker{
			failureLimit: defaultFailureLimit,
			resetTimeout: defaultResetTimeout,
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// RequestOption decorates an outgoing request.
type RequestOption func(*http.Request)

// WithBearer sets the Authorization header to "Bearer <token>".
// An empty token leaves the request unauthenticated.
func WithBearer(token string) RequestOption {
	return func(r *http.Request) {
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithHeader sets an arbitrary request header.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// Response wraps an HTTP response with convenience methods.
type Response struct {
	*http.Response
}

// IsSuccess reports whether the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Get performs an HTTP GET request with retry and circuit breaker logic.
func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.newRequest(ctx, http.MethodGet, url, nil, "", opts)
}

// Post performs an HTTP POST request with a JSON body reader.
func (c *Client) Post(ctx context.Context, url string, body io.Reader, opts ...RequestOption) (*Response, error) {
	return c.newRequest(ctx, http.MethodPost, url, body, "application/json", opts)
}

// PostJSON marshals v and posts it as JSON.
func (c *Client) PostJSON(ctx context.Context, url string, v any, opts ...RequestOption) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, errors.NewCoreError(errors.NETWORK_ERROR, "failed to marshal request body", err)
	}
	return c.Post(ctx, url, bytes.NewReader(body), opts...)
}

// PostForm performs an HTTP POST request with form data.
func (c *Client) PostForm(ctx context.Context, urlStr string, data url.Values, opts ...RequestOption) (*Response, error) {
	return c.newRequest(ctx, http.MethodPost, urlStr, strings.NewReader(data.Encode()), "application/x-www-form-urlencoded", opts)
}

// Put performs an HTTP PUT request with a JSON body reader.
func (c *Client) Put(ctx context.Context, url string, body io.Reader, opts ...RequestOption) (*Response, error) {
	return c.newRequest(ctx, http.MethodPut, url, body, "application/json", opts)
}

// Delete performs an HTTP DELETE request.
func (c *Client) Delete(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.newRequest(ctx, http.MethodDelete, url, nil, "", opts)
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader, contentType string, opts []RequestOption) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.NewCoreError(errors.NETWORK_ERROR, fmt.Sprintf("failed to create %s request", method), err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(req)
	}
	return c.Do(req)
}

// serverError marks a 5xx response as retryable.
type serverError struct {
	status string
}

func (e *serverError) Error() string {
	return "server error: " + e.status
}

// Do executes the HTTP request with retry logic and circuit breaker.
// Network errors and 5xx responses are retried; 4xx responses are returned as-is.
func (c *Client) Do(req *http.Request) (*Response, error) {
	if !c.circuitBreaker.allowRequest() {
		return nil, errors.NewCoreError(
			errors.NETWORK_ERROR,
			"circuit breaker is open",
			nil,
		)
	}

	// Buffer the request body so it can be replayed on retries
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, errors.NewCoreError(errors.NETWORK_ERROR, "failed to read request body", err)
		}
		req.Body.Close()
	}

	ctx := req.Context()
	attempts := 0
	resp, err := retry.DoWithData(
		func() (*http.Response, error) {
			attempts++
			if bodyBytes != nil {
				req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
				req.ContentLength = int64(len(bodyBytes))
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return nil, &serverError{status: resp.Status}
			}
			return resp, nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)+1),
		retry.Delay(c.retryBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Warnf("%s %s failed (attempt %d/%d): %v", req.Method, req.URL.Redacted(), n+1, c.maxRetries+1, err)
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCoreError(errors.NETWORK_ERROR, "request cancelled", ctx.Err())
		}
		c.circuitBreaker.recordFailure()
		return nil, errors.NewCoreError(
			errors.NETWORK_ERROR,
			fmt.Sprintf("request failed after %d attempts", attempts),
			err,
		)
	}

	c.circuitBreaker.recordSuccess()
	return &Response{resp}, nil
}

// DecodeJSON reads a JSON response into T and closes the body.
// Non-2xx responses yield REQUEST_FAILED carrying the status and body;
// undecodable bodies yield INVALID_RESPONSE.
func DecodeJSON[T any](resp *Response) (*T, error) {
	defer resp.Body.Close()

	if !resp.IsSuccess() {
		return nil, StatusError(resp)
	}

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.NewCoreError(errors.INVALID_RESPONSE, "failed to decode response JSON", err)
	}
	return &out, nil
}

// StatusError builds a REQUEST_FAILED error from a non-2xx response. The
// anchor's "error" field is surfaced in the message when present.
func StatusError(resp *Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	msg := fmt.Sprintf("request to %s returned status %d", resp.Request.URL.Redacted(), resp.StatusCode)
	var anchorErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &anchorErr) == nil && anchorErr.Error != "" {
		msg += ": " + anchorErr.Error
	}

	return errors.NewCoreError(errors.REQUEST_FAILED, msg, nil).
		WithContext("status", resp.StatusCode).
		WithContext("body", string(body))
}

// circuitBreaker implements a simple circuit breaker pattern.
type circuitBreaker struct {
	mu           sync.RWMutex
	failures     int
	lastFailTime time.Time
	failureLimit int
	resetTimeout time.Duration
	state        circuitState
}

type circuitState int

const (
	stateClosed circuitState = iota
	stateOpen
)

// allowRequest checks if the circuit breaker allows the request to proceed.
func (cb *circuitBreaker) allowRequest() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.state == stateClosed {
		return true
	}

	// Half-open once the reset timeout has elapsed
	return time.Since(cb.lastFailTime) > cb.resetTimeout
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = stateClosed
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailTime = time.Now()

	if cb.failures >= cb.failureLimit {
		cb.state = stateOpen
	}
}
