package contextx

import (
	"context"
)

type contextKey string

const (
	AuthPrincipalIDKey contextKey = "helix.auth_principal_id" // sub: who is acting
	AuthActorTypeKey   contextKey = "helix.auth_actor_type"   // user | system
	WorkspaceIDKey     contextKey = "helix.workspace_id"      // tenant scope

	TraceIDKey   contextKey = "helix.trace_id"
	RequestIDKey contextKey = "helix.request_id"
)

func GetTraceID(ctx context.Context) string { return getString(ctx, TraceIDKey, "") }
func WithTraceID(ctx context.Context, v string) context.Context {
	return context.WithValue(ctx, TraceIDKey, v)
}

func GetRequestID(ctx context.Context) string { return getString(ctx, RequestIDKey, "") }
func WithRequestID(ctx context.Context, v string) context.Context {
	return context.WithValue(ctx, RequestIDKey, v)
}

func GetAuthPrincipalID(ctx context.Context) string { return getString(ctx, AuthPrincipalIDKey, "") }
func WithAuthPrincipalID(ctx context.Context, v string) context.Context {
	return context.WithValue(ctx, AuthPrincipalIDKey, v)
}

// GetAuthActorType defaults to "user" once a principal is known.
func GetAuthActorType(ctx context.Context) string { return getString(ctx, AuthActorTypeKey, "user") }
func WithAuthActorType(ctx context.Context, v string) context.Context {
	return context.WithValue(ctx, AuthActorTypeKey, v)
}

func GetWorkspaceID(ctx context.Context) string { return getString(ctx, WorkspaceIDKey, "") }
func WithWorkspaceID(ctx context.Context, v string) context.Context {
	return context.WithValue(ctx, WorkspaceIDKey, v)
}

func getString(ctx context.Context, key contextKey, fallback string) string {
	if ctx == nil {
		return fallback
	}
	if val, ok := ctx.Value(key).(string); ok {
		return val
	}
	return fallback
}
