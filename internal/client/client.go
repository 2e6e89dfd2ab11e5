// Package client issues authenticated REST calls against the commerce
// platform. URLs follow base/rest[/storeCode]/V1/<resource>; authentication is
// either the session's admin bearer token or a per-request OAuth signature
// from the signing package.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"storegate/internal/session"
	"storegate/internal/signing"
	dErrors "storegate/pkg/domain-errors"
	"storegate/pkg/platform/circuit"
)

// Client is safe for concurrent use. It holds no per-session state; the
// session rides on every call so one client serves every registry entry.
//
// A circuit breaker guards the platform: a run of transport errors or 5xx
// responses trips it, after which calls fail fast until a cooldown elapses
// and a probe call succeeds. 4xx responses are the caller's problem and do
// not count against the breaker.
type Client struct {
	http     *http.Client
	logger   *slog.Logger
	breaker  *circuit.Breaker
	cooldown time.Duration

	mu       sync.Mutex
	openedAt time.Time
}

// Option customizes a Client.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithBreaker overrides the default circuit breaker; tests tighten the
// thresholds.
func WithBreaker(b *circuit.Breaker, cooldown time.Duration) Option {
	return func(c *Client) {
		c.breaker = b
		c.cooldown = cooldown
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   slog.Default(),
		breaker:  circuit.New("platform"),
		cooldown: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call describes one request. Path is the resource path under V1, e.g.
// "products/SKU-1". StoreCode, when set, addresses a specific store's REST
// route; empty means the default route.
type Call struct {
	Session   session.Session
	Method    string
	Path      string
	StoreCode string
	Query     url.Values
	Body      any
	Out       any
}

// Do executes the call. Missing credentials fail fast with an unauthenticated
// error before any network attempt; non-2xx responses come back as
// *PlatformError wrapped under CodePlatformError.
func (c *Client) Do(ctx context.Context, call Call) error {
	if !call.Session.Authenticated() {
		return dErrors.New(dErrors.CodeUnauthenticated, "session has no bearer token or credential tuple")
	}
	if err := c.admit(); err != nil {
		return err
	}

	endpoint, err := c.buildURL(call)
	if err != nil {
		return err
	}

	var body io.Reader
	if call.Body != nil {
		raw, err := json.Marshal(call.Body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if err := c.authorize(req, call); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.recordFailure()
		return dErrors.Wrap(err, dErrors.CodePlatformError, "platform unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode >= 500 {
			c.recordFailure()
		} else {
			c.recordSuccess()
		}
		c.logger.Warn("platform call failed",
			"method", call.Method, "path", call.Path, "status", resp.StatusCode)
		return dErrors.Wrap(parsePlatformError(resp.StatusCode, raw), dErrors.CodePlatformError, "platform call failed")
	}
	c.recordSuccess()

	if call.Out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, call.Out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// admit fails fast while the breaker is open and the cooldown has not
// elapsed. Once it has, one call is let through as a probe; its outcome
// decides whether the circuit closes.
func (c *Client) admit() error {
	if !c.breaker.IsOpen() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.openedAt) < c.cooldown {
		return dErrors.New(dErrors.CodePlatformError, "platform circuit open, backing off")
	}
	// start a fresh cooldown so concurrent callers do not all probe at once
	c.openedAt = time.Now()
	return nil
}

func (c *Client) recordFailure() {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.mu.Lock()
		c.openedAt = time.Now()
		c.mu.Unlock()
		c.logger.Warn("platform circuit opened")
	}
}

func (c *Client) recordSuccess() {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.Info("platform circuit closed")
	}
}

func (c *Client) buildURL(call Call) (string, error) {
	base := strings.TrimRight(call.Session.BaseURL, "/")
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("/rest")
	if call.StoreCode != "" {
		sb.WriteString("/")
		sb.WriteString(url.PathEscape(call.StoreCode))
	}
	sb.WriteString("/V1/")
	sb.WriteString(strings.TrimLeft(call.Path, "/"))

	endpoint := sb.String()
	if len(call.Query) > 0 {
		endpoint += "?" + call.Query.Encode()
	}
	if _, err := url.Parse(endpoint); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "unbuildable platform URL")
	}
	return endpoint, nil
}

func (c *Client) authorize(req *http.Request, call Call) error {
	switch call.Session.Mode {
	case session.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+call.Session.BearerToken)
		return nil
	case session.AuthCredentials:
		signer, err := signing.New(call.Session.Credentials)
		if err != nil {
			return err
		}
		header, err := signer.Authorization(call.Method, req.URL.Scheme+"://"+req.URL.Host+req.URL.Path, call.Query)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", header)
		return nil
	}
	return dErrors.New(dErrors.CodeUnauthenticated, "session has no auth mode")
}

// parsePlatformError extracts the platform's structured error body; an
// unparsable body still yields the status code.
func parsePlatformError(status int, raw []byte) *PlatformError {
	var body struct {
		Message    string `json:"message"`
		Parameters any    `json:"parameters"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return &PlatformError{Status: status, Message: strings.TrimSpace(string(raw))}
	}
	return &PlatformError{Status: status, Message: body.Message, Parameters: body.Parameters}
}
