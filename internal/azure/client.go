// Package azure is a thin client for the Azure DevOps REST API.
//
// Every call is authenticated with HTTP Basic auth using an empty username
// and the personal access token as password, and pinned to one API version
// across all endpoints. GET existence probes translate 404 into (nil, nil)
// so callers can implement check-before-create without error gymnastics.
//
// Bounded retry with exponential backoff applies to idempotent reads only.
// Creation calls are never blindly retried: the provisioning pipeline and
// the work item synchronizer re-confirm non-existence before trying again.
package azure

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// apiVersion is pinned across all calls.
const apiVersion = "7.1"

// userAgent identifies specsync to the remote API.
const userAgent = "specsync/1.0"

// maxReadRetries bounds retries of idempotent reads.
const maxReadRetries = 3

// Client talks to one Azure DevOps organization.
type Client struct {
	organization string
	baseURL      string
	authHeader   string
	httpClient   *http.Client
	logger       *log.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the organization base URL. Used by tests to point
// the client at a local server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithLogger overrides the client logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the given organization, authenticated with
// the personal access token.
func NewClient(organization, pat string, opts ...Option) *Client {
	c := &Client{
		organization: organization,
		baseURL:      "https://dev.azure.com/" + organization,
		authHeader:   "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+pat)),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       log.New(os.Stderr, "[azure] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Organization returns the organization this client talks to.
func (c *Client) Organization() string {
	return c.organization
}

// ProjectURL returns the browser URL of a project in this organization.
func (c *Client) ProjectURL(project string) string {
	return c.baseURL + "/" + url.PathEscape(project)
}

// do performs a JSON request against the API. path is relative to the
// organization base URL; the pinned api-version is always appended. A nil
// out discards the response body. 204 responses yield no decoding.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.send(ctx, method, path, query, "application/json", body, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, contentType string, body, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", apiVersion)
	fullURL := c.baseURL + path + "?" + query.Encode()

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		c.logger.Printf("%s %s -> %d", method, path, resp.StatusCode)
		return &APIError{StatusCode: resp.StatusCode, Message: string(msg)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s %s: %w", method, path, err)
	}
	return nil
}

// getWithRetry performs an idempotent read with bounded exponential backoff.
// Non-retryable API errors (4xx) abort immediately.
func (c *Client) getWithRetry(ctx context.Context, method, path string, query url.Values, body, out any) error {
	op := func() error {
		err := c.do(ctx, method, path, query, body, out)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxReadRetries), ctx)
	return backoff.Retry(op, b)
}
