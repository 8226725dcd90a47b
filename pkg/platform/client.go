// SPDX-License-Identifier: Apache-2.0

// Package platform implements the REST collaborators of an agent: the
// OpenServ platform API the agent reports progress to, and the runtime
// service the default task/chat handlers forward to.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openserv-labs/agent-go/pkg/errors"
	"github.com/openserv-labs/agent-go/pkg/resilience"
)

// DefaultBaseURL is the production platform API endpoint.
const DefaultBaseURL = "https://api.openserv.ai"

// apiKeyHeader authenticates every platform call.
const apiKeyHeader = "x-openserv-key"

// StatusError reports a non-2xx platform response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("platform returned %d: %s", e.StatusCode, e.Body)
}

// Client is a generic JSON client for the platform API. Pass-through
// methods in this package map 1:1 to fixed path templates; capabilities
// receive the client through their invocation context to report progress.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	retry   resilience.RetryConfig
	log     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithRetry replaces the retry policy for transient upstream failures.
func WithRetry(rc resilience.RetryConfig) ClientOption {
	return func(c *Client) { c.retry = rc }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient creates a platform API client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   resilience.DefaultRetryConfig(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST request with a JSON body and decodes into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT request with a JSON body and decodes into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.New(errors.CodeInternal, "encode request body", err)
		}
		payload = encoded
	}

	return c.retry.Do(ctx, func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return errors.New(errors.CodeInternal, "build request", err)
		}
		req.Header.Set(apiKeyHeader, c.apiKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return errors.New(errors.CodePlatformError, method+" "+path+" failed", err).
				WithRecoverable(true)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
			c.log.Warn("platform.request.failed",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
			)
			return errors.New(errors.CodePlatformError, method+" "+path+" failed", statusErr).
				WithContext("status", resp.StatusCode).
				WithRecoverable(isTransientStatus(resp.StatusCode)).
				WithStatusCode(resp.StatusCode)
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.New(errors.CodePlatformError, "decode response body", err)
		}
		return nil
	})
}

// isTransientStatus reports whether a status is worth retrying. Gateway
// hiccups (502 in particular) are routine with the platform's proxy.
func isTransientStatus(status int) bool {
	switch status {
	case http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	}
	return false
}
