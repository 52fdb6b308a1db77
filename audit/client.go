package audit

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "helix-audit/audit"
	defaultHTTPTimeout = 5 * time.Second
)

// Doer is the transport capability. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client sends audit events to a collector over HTTP.
// It is safe for concurrent use.
type Client struct {
	serviceName   string
	endpoint      string
	apiKey        string
	fireAndForget bool
	disabled      bool

	httpClient Doer
	observer   Observer
	tracer     trace.Tracer
	now        func() time.Time

	mu       sync.RWMutex // Guards closed against inflight.Add
	closed   bool
	inflight sync.WaitGroup
}

type Option func(*Client)

// WithAPIKey sends key as the x-api-key header. Empty means no header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithFireAndForget controls whether Log waits for the collector. Default true.
func WithFireAndForget(enabled bool) Option {
	return func(c *Client) { c.fireAndForget = enabled }
}

// WithHTTPClient injects the transport. Timeouts, if any, belong to it.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.httpClient = d
		}
	}
}

// WithObserver installs a diagnostic hook for delivery outcomes.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithClock overrides the time source used for default timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New validates the configuration and returns a ready Client.
// It never touches the network.
func New(serviceName, endpoint string, opts ...Option) (*Client, error) {
	name := strings.TrimSpace(serviceName)
	if name == "" {
		return nil, ErrMissingServiceName
	}

	target := strings.TrimSpace(endpoint)
	if target == "" {
		return nil, ErrMissingEndpoint
	}

	c := &Client{
		serviceName:   name,
		endpoint:      target,
		fireAndForget: true,
		httpClient:    &http.Client{Timeout: defaultHTTPTimeout},
		observer:      NopObserver{},
		tracer:        otel.Tracer(tracerName),
		now:           time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// NewFromConfig builds a Client from an env-loaded Config.
// Options passed here win over the values taken from cfg.
// A disabled config yields a Client that drops every entry without validation.
func NewFromConfig(cfg Config, opts ...Option) (*Client, error) {
	if !cfg.Enabled {
		c := &Client{
			serviceName: strings.TrimSpace(cfg.ServiceName),
			disabled:    true,
			observer:    NopObserver{},
			now:         time.Now,
		}
		for _, opt := range opts {
			if opt != nil {
				opt(c)
			}
		}
		return c, nil
	}

	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}

	base := []Option{
		WithAPIKey(cfg.APIKey),
		WithFireAndForget(cfg.FireAndForget),
		WithHTTPClient(&http.Client{Timeout: timeout}),
	}

	return New(cfg.ServiceName, cfg.Endpoint, append(base, opts...)...)
}

// ServiceName returns the trimmed service name stamped on every event.
func (c *Client) ServiceName() string { return c.serviceName }

// Log records one audit event. It never blocks on the network in
// fire-and-forget mode, and never reports an error or panics in either mode.
func (c *Client) Log(ctx context.Context, entry Entry) {
	if c == nil || c.disabled {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	defer func() {
		if rec := recover(); rec != nil {
			c.reportPanic(ctx, Event{ServiceName: c.serviceName, Action: entry.Action, ResourceType: entry.ResourceType}, rec)
		}
	}()

	event := Normalize(entry, c.serviceName, c.now())

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		c.failed(ctx, event, ErrClosed)
		return
	}

	if !c.fireAndForget {
		c.mu.RUnlock()
		c.send(ctx, event)
		return
	}

	c.inflight.Add(1)
	c.mu.RUnlock()

	// Detached from the caller's cancellation, values (trace, request id) are kept.
	detached := context.WithoutCancel(ctx)
	go func() {
		defer c.inflight.Done()
		c.send(detached, event)
	}()
}

// Close stops accepting entries and waits for in-flight deliveries
// until ctx is done. It is safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.disabled {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
