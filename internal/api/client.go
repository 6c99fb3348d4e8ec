// Package api is the client for the finance REST backend. Every failure is
// returned as an *APIError; a 401 clears the stored token and signals the
// login redirect through an AuthGate.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	applog "fintrack/internal/log"
	"fintrack/internal/session"
)

const (
	// RequestIDHeader carries the per-request id to the backend.
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes = 4 << 20
	defaultTimeout   = 15 * time.Second
)

// TokenSource supplies the bearer token and drops it on 401.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	ClearToken(ctx context.Context) error
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	gate       *AuthGate
	logger     *applog.Logger
	requestID  func() string
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithAuthGate(g *AuthGate) Option {
	return func(c *Client) { c.gate = g }
}

func WithLogger(l *applog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRequestIDFunc replaces the request id generator. Intended for tests.
func WithRequestIDFunc(f func() string) Option {
	return func(c *Client) { c.requestID = f }
}

// NewClient returns a client for the backend rooted at baseURL,
// e.g. "http://localhost:8080/api".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     applog.Discard(),
		requestID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent(applog.ComponentAPI)
	return c
}

// do performs one request and returns the raw 2xx body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, &APIError{Message: fmt.Sprintf("encode request: %v", err), Err: err}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &APIError{Message: fmt.Sprintf("create request: %v", err), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := c.requestID()
	req.Header.Set(RequestIDHeader, reqID)

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		switch {
		case err == nil:
			req.Header.Set("Authorization", "Bearer "+token)
		case errors.Is(err, session.ErrNoToken):
		default:
			return nil, &APIError{Message: fmt.Sprintf("load token: %v", err), Err: err}
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.LogError(ctx, "Backend request failed", err, applog.OpFetch, applog.NewFields().
			WithRequestID(reqID).
			WithRequest(method, path))
		return nil, &APIError{Message: fmt.Sprintf("request %s %s: %v", method, path, err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err), Err: err}
	}

	c.logger.DebugContext(ctx, "Backend request completed",
		applog.FieldRequestID, reqID,
		applog.FieldMethod, method,
		applog.FieldPath, path,
		applog.FieldStatusCode, resp.StatusCode,
		applog.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode == http.StatusUnauthorized {
		c.handleUnauthorized(ctx)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorFromResponse(resp.StatusCode, raw)
	}
	return raw, nil
}

func (c *Client) handleUnauthorized(ctx context.Context) {
	if c.tokens != nil {
		if err := c.tokens.ClearToken(ctx); err != nil {
			c.logger.LogError(ctx, "Failed to clear token after 401", err, applog.OpRedirect, nil)
		}
	}
	if c.gate != nil && c.gate.TryRedirectOnce() {
		loginURL, _ := c.gate.Pending()
		c.logger.WarnContext(ctx, "Session rejected, login redirect requested", "login_url", loginURL)
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) post(ctx context.Context, path string, in any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, nil, in)
}
