// Package transport is the HTTP client shared by the user and OTP gateways. Every
// request carries the configured bearer credential and JSON content headers.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opsdesk/userconsole/internal/credential"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 4 << 20
)

// Observer receives one callback per completed call.
type Observer interface {
	ObserveCall(operation string, d time.Duration, err error)
}

// Client issues requests against a fixed base URL.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	creds    credential.Source
	logger   *slog.Logger
	observer Observer
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default *http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the logger used for call tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver installs a metrics observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New builds a Client for baseURL authenticating with creds.
func New(baseURL string, creds credential.Source, opts ...Option) (*Client, error) {
	if creds == nil {
		return nil, errors.New("transport: credential source is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("transport: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("transport: base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: defaultTimeout},
		creds:   creds,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Request describes one call. Operation names the call in logs, metrics and errors.
type Request struct {
	Operation string
	Method    string
	Path      string
	Query     url.Values
	Body      any
}

// Do performs req and decodes a successful JSON response into out (which may be nil).
func (c *Client) Do(ctx context.Context, req Request, out any) (err error) {
	start := time.Now()
	status := 0
	defer func() {
		d := time.Since(start)
		if c.observer != nil {
			c.observer.ObserveCall(req.Operation, d, err)
		}
		// Query strings may carry passwords, so only the path is logged.
		attrs := []any{
			slog.String("operation", req.Operation),
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.Int("status", status),
			slog.Duration("duration", d),
		}
		if err != nil {
			c.logger.WarnContext(ctx, "user service call failed", append(attrs, slog.Any("error", err))...)
			return
		}
		c.logger.DebugContext(ctx, "user service call", attrs...)
	}()

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return &Error{Operation: req.Operation, Err: err}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &Error{Operation: req.Operation, Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &Error{Operation: req.Operation, StatusCode: status, Err: fmt.Errorf("read body: %w", err)}
	}

	if status < 200 || status > 299 {
		return &Error{Operation: req.Operation, StatusCode: status, ServerMessage: serverMessage(payload)}
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &Error{Operation: req.Operation, StatusCode: status, Err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.creds.Token())
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	return httpReq, nil
}

func serverMessage(payload []byte) string {
	var body struct {
		Message string `json:"message"`
		Detail  any    `json:"detail"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	if s, ok := body.Detail.(string); ok {
		return s
	}
	return ""
}
