package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const maxDrainBytes = 64 << 10

var (
	_ Logger = (*Client)(nil)
	_ Logger = NopLogger{}
)

// send performs one delivery attempt and reports the outcome to the observer only.
func (c *Client) send(ctx context.Context, event Event) {
	start := time.Now()

	ctx, span := c.startSpan(ctx, event)
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			span.SetStatus(codes.Error, "panic")
			c.reportPanic(ctx, event, rec)
		}
	}()

	status, err := c.post(ctx, event)
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.failed(ctx, event, err)
		return
	}

	c.delivered(ctx, event, status, time.Since(start))
}

// post issues the POST. The response body is drained and never parsed.
func (c *Client) post(ctx context.Context, event Event) (int, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("audit: marshal failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("audit: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	if trace.SpanFromContext(ctx).IsRecording() {
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("audit: request failed: %w", err)
	}
	if resp.Body != nil {
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &StatusError{StatusCode: resp.StatusCode}
	}
	return resp.StatusCode, nil
}

// startSpan only opens a span when the caller is already being traced.
func (c *Client) startSpan(ctx context.Context, event Event) (context.Context, trace.Span) {
	if !trace.SpanFromContext(ctx).IsRecording() {
		return ctx, trace.SpanFromContext(context.Background())
	}

	return c.tracer.Start(ctx, "audit.deliver",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("audit.service", event.ServiceName),
			attribute.String("audit.action", event.Action),
			attribute.String("audit.resource_type", event.ResourceType),
			attribute.String("http.request.method", http.MethodPost),
		),
	)
}

func (c *Client) reportPanic(ctx context.Context, event Event, rec any) {
	c.failed(ctx, event, fmt.Errorf("audit: delivery panicked: %v", rec))
}

// Observer panics must not escape either.
func (c *Client) failed(ctx context.Context, event Event, err error) {
	defer func() { _ = recover() }()
	c.observer.Failed(ctx, event, err)
}

func (c *Client) delivered(ctx context.Context, event Event, status int, elapsed time.Duration) {
	defer func() { _ = recover() }()
	c.observer.Delivered(ctx, event, status, elapsed)
}
