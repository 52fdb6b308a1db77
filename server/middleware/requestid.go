package middleware

import (
	"encoding/hex"
	"net/http"

	"github.com/godamri/helix-audit/pkg/contextx"
	"github.com/google/uuid"
)

const (
	TraceHeader   = "X-Trace-Id"
	RequestHeader = "X-Request-Id"
)

// RequestIDMiddleware makes sure every request carries a request id and a trace id,
// echoing them back in the response and storing them in the context for AuditMiddleware.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		traceID := r.Header.Get(TraceHeader)
		if traceID == "" {
			uid := uuid.New()
			traceID = hex.EncodeToString(uid[:])
		}

		w.Header().Set(RequestHeader, reqID)
		w.Header().Set(TraceHeader, traceID)

		ctx := contextx.WithRequestID(r.Context(), reqID)
		ctx = contextx.WithTraceID(ctx, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
