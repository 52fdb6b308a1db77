package audit

import (
	"context"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestLog_PropagatesTraceWhenCallerIsTraced(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	srv, reqs := newCollector(t, http.StatusOK)
	c, _ := New("svc", srv.URL, WithFireAndForget(false), WithTracer(tp.Tracer("test")))

	ctx, parent := tp.Tracer("test").Start(context.Background(), "handler")
	c.Log(ctx, Entry{Action: "UPDATE", ResourceType: "user"})
	parent.End()

	r := receive(t, reqs)
	if r.Header.Get("traceparent") == "" {
		t.Error("traceparent header should be injected for a traced caller")
	}

	var found bool
	for _, s := range recorder.Ended() {
		if s.Name() == "audit.deliver" {
			found = true
			if s.Parent().SpanID() != parent.SpanContext().SpanID() {
				t.Error("audit.deliver should be a child of the caller span")
			}
		}
	}
	if !found {
		t.Error("audit.deliver span was not recorded")
	}
}

func TestLog_NoTraceHeadersWithoutSpan(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	srv, reqs := newCollector(t, http.StatusOK)
	c, _ := New("svc", srv.URL, WithFireAndForget(false))

	c.Log(context.Background(), Entry{Action: "UPDATE", ResourceType: "user"})

	r := receive(t, reqs)
	if r.Header.Get("traceparent") != "" {
		t.Errorf("unexpected traceparent %q", r.Header.Get("traceparent"))
	}
}
