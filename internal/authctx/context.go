// Package authctx carries the authenticated actor and client metadata through
// request contexts, so services and the audit chain can attribute actions
// without threading identity through every call signature.
package authctx

import (
	"context"

	"appliance-fieldops/authcore/internal/role"
)

type contextKey struct{ name string }

var (
	userIDKey    = contextKey{"user_id"}
	roleKey      = contextKey{"role"}
	sessionIDKey = contextKey{"session_id"}
	clientKey    = contextKey{"client"}
)

// Client holds the request's network metadata as reported by the edge.
type Client struct {
	IPAddress string
	UserAgent string
}

// WithIdentity returns a context with user_id, role, and session_id set.
func WithIdentity(ctx context.Context, userID string, r role.Role, sessionID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, roleKey, r)
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	return ctx
}

// WithClient returns a context carrying the client's IP and user agent.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey, c)
}

// UserID returns the user_id from context and true if set; otherwise "", false.
func UserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}

// RoleOf returns the role from context and true if set.
func RoleOf(ctx context.Context) (role.Role, bool) {
	v, ok := ctx.Value(roleKey).(role.Role)
	return v, ok
}

// SessionID returns the session_id from context and true if set.
func SessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	return v, ok
}

// ClientOf returns the client metadata from context; zero value when absent.
func ClientOf(ctx context.Context) Client {
	v, _ := ctx.Value(clientKey).(Client)
	return v
}
