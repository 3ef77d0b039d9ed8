// Package upstream fetches JSON documents from the services the dashboard
// watches.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/okian/flightboard/internal/domain/endpoint"
	"github.com/okian/flightboard/pkg/logger"
	"github.com/okian/flightboard/pkg/metrics"
)

const (
	maxBodyBytes     = 8 << 20
	defaultUserAgent = "flightboard/1"
)

// ErrRequestFailed covers network failures and unparsable bodies alike.
var ErrRequestFailed = errors.New("request failed")

// Client performs upstream calls. The zero timeout leaves the deadline to
// the transport and the caller's context.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	userAgent string
	logger    logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each request. Zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient swaps the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	return c
}

// Fetch calls e with its configured method and returns the body as compact
// JSON. The HTTP status is not judged: a JSON error document is returned
// like any other payload.
func (c *Client) Fetch(ctx context.Context, e endpoint.Endpoint) ([]byte, error) {
	start := time.Now()
	body, err := c.do(ctx, e.Method, e.URL)
	latency := float64(time.Since(start).Milliseconds())

	if err != nil {
		metrics.RecordUpstreamRequest(string(e.Name), e.Method, metrics.OutcomeFailure, latency)
		c.logger.Warn(ctx, "upstream request failed",
			logger.String("endpoint", string(e.Name)),
			logger.String("url", e.URL),
			logger.Error(err),
		)
		return nil, err
	}
	metrics.RecordUpstreamRequest(string(e.Name), e.Method, metrics.OutcomeSuccess, latency)
	c.logger.Debug(ctx, "upstream request done",
		logger.String("endpoint", string(e.Name)),
		logger.Int("bytes", len(body)),
	)
	return body, nil
}

func (c *Client) do(ctx context.Context, method, url string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, url, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: read body: %w", ErrRequestFailed, method, url, err)
	}
	if len(raw) > maxBodyBytes {
		return nil, fmt.Errorf("%w: %s %s: body exceeds %d bytes", ErrRequestFailed, method, url, maxBodyBytes)
	}
	return compactJSON(raw, method, url)
}

// compactJSON validates raw and rewrites it in its display form: no
// insignificant whitespace, member order kept, numbers in shortest form and
// string escapes decoded.
func compactJSON(raw []byte, method, url string) ([]byte, error) {
	if !jsoniter.Valid(raw) {
		return nil, fmt.Errorf("%w: %s %s: response is not valid JSON: %q",
			ErrRequestFailed, method, url, truncate(raw, 64))
	}
	out, err := normalizeJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, url, err)
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
