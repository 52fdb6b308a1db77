package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/godamri/helix-audit/audit"
	"github.com/godamri/helix-audit/pkg/contextx"
)

// AuditMiddleware records one audit event per mutating request.
// GET, HEAD and OPTIONS are skipped, as are cfg.ExcludePaths.
// Actor and workspace come from the context (set by the auth layer),
// request id from RequestIDMiddleware. The request body, up to
// cfg.MaxBodySize bytes, is sent as the "after" snapshot.
func AuditMiddleware(logger audit.Logger, cfg audit.Config) func(http.Handler) http.Handler {
	if logger == nil {
		logger = audit.NopLogger{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isMutating(r.Method) || isExcluded(r.URL.Path, cfg.ExcludePaths) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			body, truncated := captureBody(r, cfg.MaxBodySize)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			ctx := r.Context()
			entry := audit.Entry{
				WorkspaceID:  contextx.GetWorkspaceID(ctx),
				Action:       actionFor(r.Method),
				ResourceType: r.URL.Path,
				IP:           clientIP(r.RemoteAddr),
				UserAgent:    r.UserAgent(),
				RequestID:    contextx.GetRequestID(ctx),
				After:        snapshot(body),
				Metadata: map[string]any{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      ww.Status(),
					"duration_ms": time.Since(start).Milliseconds(),
				},
			}

			if rctx := chi.RouteContext(ctx); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					entry.ResourceType = pattern // "/users/{id}" instead of "/users/42"
				}
				entry.ResourceID = rctx.URLParam("id")
			}

			if principal := contextx.GetAuthPrincipalID(ctx); principal != "" {
				entry.ActorType = audit.ActorType(contextx.GetAuthActorType(ctx))
				entry.ActorID = audit.StringActorID(principal)
			}

			if traceID := contextx.GetTraceID(ctx); traceID != "" {
				entry.Metadata["trace_id"] = traceID
			}
			if truncated {
				entry.Metadata["body_truncated"] = true
			}

			// The request context is cancelled once the handler returns.
			logger.Log(context.WithoutCancel(ctx), entry)
		})
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func isExcluded(path string, excluded []string) bool {
	for _, p := range excluded {
		if p == "" {
			continue
		}
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

func actionFor(method string) string {
	switch method {
	case http.MethodPost:
		return "CREATE"
	case http.MethodPut, http.MethodPatch:
		return "UPDATE"
	case http.MethodDelete:
		return "DELETE"
	default:
		return method
	}
}

// captureBody reads at most limit bytes and puts them back in front of the
// unread remainder, so the handler still sees the full body.
func captureBody(r *http.Request, limit int64) ([]byte, bool) {
	if r.Body == nil || r.Body == http.NoBody || limit <= 0 {
		return nil, false
	}

	// A read error comes back to the handler from the restored body.
	head, _ := io.ReadAll(io.LimitReader(r.Body, limit+1))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}

	if int64(len(head)) > limit {
		return head[:limit], true
	}
	return head, false
}

// snapshot keeps JSON bodies structured and everything else as text.
func snapshot(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
