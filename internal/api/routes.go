package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hyperengineering/farmcost/internal/refdata"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware(h.metrics))
	r.Use(middleware.Recoverer)
	r.Use(IdentityMiddleware(h.auth, h.cookieName, h.apiKey))

	// Public routes
	r.Get("/health", h.Health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	// Reference data and reports
	r.Group(func(r chi.Router) {
		r.Use(Require(CapabilityAuthenticated))
		for _, kind := range refdata.All() {
			mountKind(r, h, kind)
		}
		r.Post("/ingest_all", h.IngestAll)
		r.Get("/ingest_runs", h.IngestRuns)
		r.Get("/status", h.Status)
		r.Get("/real_time_info", h.RealTimeInfo)
	})

	// User management
	r.Group(func(r chi.Router) {
		r.Use(Require(CapabilityAdmin))
		r.Get("/users", h.ListUsers)
		r.Post("/users", h.AddUser)
		r.Delete("/users", h.DeleteUser)
	})

	return r
}

// mountKind registers the CRUD and ingest routes of one reference kind.
func mountKind(r chi.Router, h *Handler, kind *refdata.Kind) {
	r.Get("/get_"+kind.Plural, h.List(kind))
	r.Post("/add_"+kind.Name, h.Add(kind))
	r.Post("/update_"+kind.Name, h.Update(kind))
	r.Post("/delete_"+kind.Name, h.DeleteByField(kind))
	r.Delete("/"+kind.Name+"/{key}", h.DeleteByKey(kind))
	r.Post("/ingest_"+kind.Plural, h.Ingest(kind))
}
