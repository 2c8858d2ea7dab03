// Package api is the HTTP adapter between the stores and the REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"github.com/mmynk/posclient/internal/metrics"
)

// RequestIDHeader correlates a client call with backend logs.
const RequestIDHeader = "X-Request-ID"

// TokenSource supplies the bearer token for each request.
// An empty token means the request is sent unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) string

func (f TokenFunc) Token(ctx context.Context) string { return f(ctx) }

// Client issues requests against the backend's base URL.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithMetrics records every request into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout bounds every request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying client (its cookie jar included).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for baseURL (e.g. http://localhost:8000/api).
// Cookies set by the backend are kept, as a browser would for credentialed requests.
func New(baseURL string, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Jar: jar},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetJSON fetches path and returns the raw JSON body.
func (c *Client) GetJSON(ctx context.Context, path string) ([]byte, error) {
	return c.send(ctx, http.MethodGet, path, nil, "")
}

// PostJSON sends in as JSON and returns the raw response body.
func (c *Client) PostJSON(ctx context.Context, path string, in any) ([]byte, error) {
	return c.sendJSON(ctx, http.MethodPost, path, in)
}

// PutJSON sends in as JSON with PUT.
func (c *Client) PutJSON(ctx context.Context, path string, in any) ([]byte, error) {
	return c.sendJSON(ctx, http.MethodPut, path, in)
}

// PatchJSON sends in as JSON with PATCH.
func (c *Client) PatchJSON(ctx context.Context, path string, in any) ([]byte, error) {
	return c.sendJSON(ctx, http.MethodPatch, path, in)
}

// Delete issues a DELETE and discards the body.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.send(ctx, http.MethodDelete, path, nil, "")
	return err
}

// PostForm sends a multipart form with POST.
func (c *Client) PostForm(ctx context.Context, path string, form *Form) ([]byte, error) {
	body, contentType, err := form.encode()
	if err != nil {
		return nil, err
	}
	return c.send(ctx, http.MethodPost, path, body, contentType)
}

// File is a binary document returned by the backend.
type File struct {
	// Name comes from Content-Disposition; empty if the backend sent none.
	Name        string
	ContentType string
	Data        []byte
}

// Download fetches a binary document.
func (c *Client) Download(ctx context.Context, path string) (*File, error) {
	resp, data, err := c.do(ctx, http.MethodGet, path, nil, "", "application/pdf, application/octet-stream, */*")
	if err != nil {
		return nil, err
	}
	f := &File{ContentType: resp.Header.Get("Content-Type"), Data: data}
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			f.Name = params["filename"]
		}
	}
	return f, nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in any) ([]byte, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s %s body: %w", method, path, err)
	}
	return c.send(ctx, method, path, bytes.NewReader(payload), "application/json")
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	_, data, err := c.do(ctx, method, path, body, contentType, "application/json")
	return data, err
}

// do performs one request. Non-2xx responses are returned as *Error.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType, accept string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", accept)
	req.Header.Set(RequestIDHeader, requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		if token := c.tokens.Token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	route := routeOf(path)
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(method, route, "error", time.Since(start).Seconds())
		c.logger.Warn("Backend unreachable",
			"method", method,
			"path", path,
			"request_id", requestID,
			"error", err,
		)
		return nil, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	c.metrics.ObserveRequest(method, route, strconv.Itoa(resp.StatusCode), duration.Seconds())
	if err != nil {
		return resp, nil, fmt.Errorf("failed to read %s %s response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newError(resp.StatusCode, data)
		c.logger.Warn("Backend request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"request_id", requestID,
			"error", apiErr.Message,
			"duration_ms", duration.Milliseconds(),
		)
		return resp, data, apiErr
	}

	c.logger.Debug("Backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", duration.Milliseconds(),
	)
	return resp, data, nil
}

var numericSegment = regexp.MustCompile(`/\d+(/|$)`)

// routeOf collapses numeric path segments so metrics labels stay bounded.
func routeOf(path string) string {
	for numericSegment.MatchString(path) {
		path = numericSegment.ReplaceAllString(path, "/:id$1")
	}
	return path
}
