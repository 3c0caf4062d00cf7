// Package api provides the REST API server of the admin API.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ed-fi-alliance/ods-admin-api/internal/api/common"
	v2 "github.com/ed-fi-alliance/ods-admin-api/internal/api/v2"
	"github.com/ed-fi-alliance/ods-admin-api/internal/jobs"
	"github.com/ed-fi-alliance/ods-admin-api/internal/status"
)

// Dependencies are the collaborators behind the API handlers.
type Dependencies struct {
	Enqueuer     jobs.Enqueuer
	Cache        v2.CacheReader
	Statuses     status.Store
	Readiness    ReadinessChecker
	MultiTenancy bool
}

// ServerOption configures the API server
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// NewServer creates the HTTP router over deps.
func NewServer(deps Dependencies, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Mount("/", HealthRouter(deps.Readiness))

	r.Group(func(r chi.Router) {
		r.Use(common.TenantMiddleware(deps.MultiTenancy))
		r.Mount("/v2", v2.Router(deps.Enqueuer, deps.Cache, deps.Statuses))
	})

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
