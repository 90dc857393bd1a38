package api

import (
	"context"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	Username string
	Admin    bool
	// Method is how the caller authenticated: "session" or "api_key".
	Method string
}

// Authentication methods recorded on an Identity.
const (
	MethodSession = "session"
	MethodAPIKey  = "api_key"
)

// identityContextKey is the context key for the resolved caller.
type identityContextKey struct{}

// sessionTokenContextKey is the context key for the raw session token.
type sessionTokenContextKey struct{}

// WithIdentity returns a new context with the identity attached.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from the context.
// The boolean is false for anonymous requests.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || id.Username == "" {
		return Identity{}, false
	}
	return id, true
}

// withSessionToken records the session token the identity was resolved from.
func withSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionTokenContextKey{}, token)
}

// sessionTokenFromContext returns the session token, or "" when the request
// was not authenticated by a session.
func sessionTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(sessionTokenContextKey{}).(string)
	return token
}
