// Package client provides a typed HTTP client for the Meridian data API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config holds configuration for the API client.
type Config struct {
	BaseURL       string        // Required; e.g. "https://data.example.com"
	APIKey        string        // Optional when the server runs with auth disabled
	Timeout       time.Duration // Optional; if zero, 10s is used
	RetryMax      uint64        // Retries for 429/5xx responses; 0 disables retry
	RetryInterval time.Duration // Initial backoff interval; default 500ms
	HTTPClient    *http.Client  // Optional custom transport
}

// Client is the main struct for interacting with the data API.
// It is stateless per call and safe for concurrent use.
type Client struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	retryMax      uint64
	retryInterval time.Duration

	mu       sync.Mutex
	lastRate RateLimitInfo
}

// New creates a new API client using the provided Config.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	retryInterval := cfg.RetryInterval
	if retryInterval <= 0 {
		retryInterval = 500 * time.Millisecond
	}
	return &Client{
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		httpClient:    httpClient,
		retryMax:      cfg.RetryMax,
		retryInterval: retryInterval,
	}
}

// RateLimit returns the rate-limit headers from the most recent response.
func (c *Client) RateLimit() RateLimitInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRate
}

// do issues one API call, retrying transient failures when RetryMax > 0,
// and decodes a 2xx response body into out (which may be nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: marshal request: %w", err)
		}
	}

	op := func() error {
		return c.attempt(ctx, method, path, query, reqBody, out)
	}
	if c.retryMax == 0 {
		err := op()
		return unwrapPermanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.retryMax), ctx)
	return unwrapPermanent(backoff.Retry(op, policy))
}

func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, reqBody []byte, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(reqBody))
	if err != nil {
		return backoff.Permanent(err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.recordRateLimit(resp.Header)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := parseAPIError(resp.StatusCode, respBody)
		if apiErr.retryable() {
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return backoff.Permanent(fmt.Errorf("client: decode response: %w", err))
		}
	}
	return nil
}

func (c *Client) recordRateLimit(h http.Header) {
	limit := h.Get("X-RateLimit-Limit")
	if limit == "" {
		return
	}
	info := RateLimitInfo{}
	info.Limit, _ = strconv.Atoi(limit)
	info.Remaining, _ = strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	if reset, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		info.Reset = time.Unix(reset, 0)
	}
	c.mu.Lock()
	c.lastRate = info
	c.mu.Unlock()
}

func parseAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Error struct {
			Code      string       `json:"code"`
			Message   string       `json:"message"`
			Details   []FieldError `json:"details"`
			RequestID string       `json:"request_id"`
		} `json:"error"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.Details = envelope.Error.Details
		apiErr.RequestID = envelope.Error.RequestID
	} else {
		apiErr.Code = "HTTP_" + strconv.Itoa(status)
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// unwrapPermanent strips backoff's permanent-error wrapper so callers see
// the *APIError directly.
func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
