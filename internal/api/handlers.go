package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperengineering/farmcost/internal/metrics"
	"github.com/hyperengineering/farmcost/internal/store"
	"github.com/hyperengineering/farmcost/internal/types"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// DefaultCookieName is used when Options.CookieName is empty.
const DefaultCookieName = "farmcost_session"

// Authenticator is the credential and session service behind the auth routes.
type Authenticator interface {
	SessionResolver
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context, token string) error
	AddUser(ctx context.Context, username, password string) error
	DeleteUser(ctx context.Context, username string) error
	ListUsers(ctx context.Context) ([]types.User, error)
}

// Options configures a Handler.
type Options struct {
	Version      string
	APIKey       string
	CookieName   string
	CookieSecure bool
	SessionTTL   time.Duration
	Metrics      *metrics.Metrics
}

// Handler implements the API handlers
type Handler struct {
	store        store.Store
	auth         Authenticator
	metrics      *metrics.Metrics
	apiKey       string
	version      string
	cookieName   string
	cookieSecure bool
	sessionTTL   time.Duration
}

// NewHandler creates a new Handler over the store and auth service.
func NewHandler(s store.Store, a Authenticator, opts Options) *Handler {
	cookieName := opts.CookieName
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Handler{
		store:        s,
		auth:         a,
		metrics:      opts.Metrics,
		apiKey:       opts.APIKey,
		version:      opts.Version,
		cookieName:   cookieName,
		cookieSecure: opts.CookieSecure,
		sessionTTL:   opts.SessionTTL,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{
		Status:   "healthy",
		Version:  h.version,
		Database: "ok",
	}
	status := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		resp.Status = "unhealthy"
		resp.Database = "unavailable"
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, resp)
}

// decodeJSON decodes a JSON request body into v, keeping numbers as
// json.Number.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}
