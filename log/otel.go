package log

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelHandler stamps trace_id/span_id on every record of a traced context.
// WARN records become span events; ERROR records mark the span as failed.
type OTelHandler struct {
	slog.Handler
}

func NewOTelHandler(h slog.Handler) *OTelHandler {
	return &OTelHandler{Handler: h}
}

func (h *OTelHandler) Handle(ctx context.Context, r slog.Record) error {
	span := trace.SpanFromContext(ctx)

	if span.IsRecording() {
		sc := span.SpanContext()
		if sc.HasTraceID() {
			r.AddAttrs(slog.String("trace_id", sc.TraceID().String()))
		}
		if sc.HasSpanID() {
			r.AddAttrs(slog.String("span_id", sc.SpanID().String()))
		}

		if r.Level >= slog.LevelWarn {
			annotateSpan(span, r)
		}
	}

	return h.Handler.Handle(ctx, r)
}

func annotateSpan(span trace.Span, r slog.Record) {
	attrs := make([]attribute.KeyValue, 0, r.NumAttrs())
	var recErr error

	r.Attrs(func(a slog.Attr) bool {
		switch a.Value.Kind() {
		case slog.KindString:
			attrs = append(attrs, attribute.String(a.Key, a.Value.String()))
		case slog.KindInt64:
			attrs = append(attrs, attribute.Int64(a.Key, a.Value.Int64()))
		case slog.KindUint64:
			attrs = append(attrs, attribute.Int64(a.Key, int64(a.Value.Uint64())))
		case slog.KindFloat64:
			attrs = append(attrs, attribute.Float64(a.Key, a.Value.Float64()))
		case slog.KindBool:
			attrs = append(attrs, attribute.Bool(a.Key, a.Value.Bool()))
		default:
			attrs = append(attrs, attribute.String(a.Key, a.Value.String()))
		}

		if a.Key == "error" && a.Value.Kind() == slog.KindAny {
			if e, ok := a.Value.Any().(error); ok {
				recErr = e
			}
		}
		return true
	})

	if r.Level < slog.LevelError {
		span.AddEvent("log_warning", trace.WithAttributes(
			append(attrs, attribute.String("message", r.Message))...,
		))
		return
	}

	if recErr == nil {
		recErr = errors.New(r.Message)
	}
	span.RecordError(recErr, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, r.Message)
}

func (h *OTelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &OTelHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *OTelHandler) WithGroup(name string) slog.Handler {
	return &OTelHandler{Handler: h.Handler.WithGroup(name)}
}
