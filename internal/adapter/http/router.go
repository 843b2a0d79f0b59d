package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chainbooks/chainbooks/internal/adapter/http/handler"
	"github.com/chainbooks/chainbooks/internal/adapter/http/middleware"
	"github.com/chainbooks/chainbooks/internal/infrastructure/auth"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	ReportHandler     *handler.ReportHandler
	CheckpointHandler *handler.CheckpointHandler
	HealthHandler     *handler.HealthHandler
	Logging           *middleware.LoggingMiddleware
	Metrics           *middleware.MetricsMiddleware
	JWTManager        *auth.JWTManager
	AuthEnabled       bool
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	if cfg.Logging != nil {
		r.Use(cfg.Logging.Wrap)
	}
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Wrap)
	}

	// Health and metrics endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.AuthEnabled && cfg.JWTManager != nil {
			r.Use(middleware.AuthMiddleware(cfg.JWTManager))
		}

		r.Post("/reports", cfg.ReportHandler.Run)

		r.Route("/checkpoints", func(r chi.Router) {
			r.Get("/{wallet}", cfg.CheckpointHandler.Get)
			r.Delete("/{wallet}", cfg.CheckpointHandler.Delete)
		})
	})

	return r
}
