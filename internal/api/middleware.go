package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hyperengineering/farmcost/internal/auth"
	"github.com/hyperengineering/farmcost/internal/metrics"
)

// apiKeyUsername is the identity name of callers using the API key.
const apiKeyUsername = "api-key"

// SessionResolver resolves session tokens to users.
type SessionResolver interface {
	Authenticate(ctx context.Context, token string) (string, error)
	IsAdmin(username string) bool
}

// Capability is what a route requires of its caller.
type Capability int

const (
	// CapabilityAuthenticated admits any identified caller.
	CapabilityAuthenticated Capability = iota
	// CapabilityAdmin admits only the administrator.
	CapabilityAdmin
)

// extractBearerToken extracts the token from Authorization header.
// Returns empty string for missing/malformed headers.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	// Must start with "Bearer " (case-sensitive per RFC 6750)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}

	return strings.TrimSpace(header[len(prefix):])
}

// constantTimeEqual compares two strings using constant-time comparison
// to prevent timing attacks.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// IdentityMiddleware attaches the caller's identity to the request context.
// A valid session cookie wins; otherwise a Bearer token equal to apiKey
// identifies an automation client. An empty apiKey disables Bearer auth.
// Anonymous requests pass through unchanged; guards decide what they may do.
func IdentityMiddleware(sessions SessionResolver, cookieName, apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
				username, err := sessions.Authenticate(ctx, c.Value)
				switch {
				case err == nil:
					ctx = WithIdentity(ctx, Identity{
						Username: username,
						Admin:    sessions.IsAdmin(username),
						Method:   MethodSession,
					})
					ctx = withSessionToken(ctx, c.Value)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				case errors.Is(err, auth.ErrSessionNotFound):
					// stale cookie, fall through to the API key
				default:
					MapStoreError(w, r, err)
					return
				}
			}

			if apiKey != "" {
				if token := extractBearerToken(r); token != "" && constantTimeEqual(token, apiKey) {
					ctx = WithIdentity(ctx, Identity{
						Username: apiKeyUsername,
						Method:   MethodAPIKey,
					})
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Require rejects callers lacking the capability: 401 for anonymous
// callers, 403 for authenticated non-admins on admin routes.
func Require(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				slog.Warn("auth failure",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_ip", r.RemoteAddr,
				)
				WriteError(w, r, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			if c == CapabilityAdmin && !id.Admin {
				slog.Warn("admin route refused",
					"path", r.URL.Path,
					"method", r.Method,
					"username", id.Username,
				)
				WriteError(w, r, http.StatusForbidden, msgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// MetricsMiddleware records request counts and latency by route pattern.
// A nil m disables it.
func MetricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			m.ObserveAPI(r.Method, route, wrapped.statusCode, time.Since(start))
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}
