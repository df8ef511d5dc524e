// Package links checks that documentation links are reachable.
package links

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("stubcat.links")

const (
	DefaultLimit   = 8
	DefaultTimeout = 10 * time.Second
)

// StatusError is returned for a response with a 4xx or 5xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d %s", e.Code, http.StatusText(e.Code))
}

// Checker checks URLs with HEAD requests, falling back to GET for servers
// that refuse HEAD.
type Checker struct {
	client  *http.Client
	limit   int
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithClient replaces http.DefaultClient.
func WithClient(client *http.Client) Option {
	return func(c *Checker) { c.client = client }
}

// WithLimit caps the number of requests in flight.
func WithLimit(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for failed links.
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) { c.logger = l }
}

// New returns a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{
		client:  http.DefaultClient,
		limit:   DefaultLimit,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check requests every distinct URL and returns the failures keyed by URL.
func (c *Checker) Check(ctx context.Context, urls []string) map[string]error {
	ctx, span := tracer.Start(ctx, "links.Checker.Check",
		trace.WithAttributes(attribute.Int("links.count", len(urls))))
	defer span.End()

	var (
		mu     sync.Mutex
		broken = make(map[string]error)
		seen   = make(map[string]bool)
	)
	var g errgroup.Group
	g.SetLimit(c.limit)
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		g.Go(func() error {
			if err := c.fetch(ctx, u); err != nil {
				c.logger.Debug("broken link", "url", u, "error", err)
				mu.Lock()
				broken[u] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	span.SetAttributes(attribute.Int("links.broken", len(broken)))
	if len(broken) > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d broken link(s)", len(broken)))
	}
	return broken
}

func (c *Checker) fetch(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("links: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("links: unsupported scheme %q", u.Scheme)
	}

	code, err := c.do(ctx, http.MethodHead, raw)
	if err == nil && (code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented) {
		code, err = c.do(ctx, http.MethodGet, raw)
	}
	if err != nil {
		return err
	}
	if code >= 400 {
		return &StatusError{Code: code}
	}
	return nil
}

func (c *Checker) do(ctx context.Context, method, raw string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, raw, nil)
	if err != nil {
		return 0, fmt.Errorf("links: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("links: %w", err)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
