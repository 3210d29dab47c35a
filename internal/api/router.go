package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/aiox-platform/governor/internal/middleware"
)

// HandlerSet holds handler functions injected from cmd to avoid import cycles.
type HandlerSet struct {
	CheckAccess http.HandlerFunc

	GetRetentionSettings    http.HandlerFunc
	UpdateRetentionSettings http.HandlerFunc
	PreviewRetention        http.HandlerFunc
	RunRetention            http.HandlerFunc

	AuthMiddleware func(http.Handler) http.Handler
}

// ReadinessCheck probes one dependency. A nil Check reports "not configured".
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	Readiness          []ReadinessCheck
	// RetentionRunLimiter gates manual retention runs per caller.
	RetentionRunLimiter func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(mw.CORS(cfg.CORSAllowedOrigins))

	// Liveness probe, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	readinessHandler := readiness(cfg.Readiness)
	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Get("/access/check", h.CheckAccess)

		r.Route("/retention", func(r chi.Router) {
			r.Get("/settings", h.GetRetentionSettings)
			r.Put("/settings", h.UpdateRetentionSettings)
			r.Get("/preview", h.PreviewRetention)

			r.Group(func(r chi.Router) {
				if cfg.RetentionRunLimiter != nil {
					r.Use(cfg.RetentionRunLimiter)
				}
				r.Post("/run", h.RunRetention)
			})
		})
	})

	return r
}

func readiness(checks []ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		health := map[string]string{"status": "healthy"}
		status := http.StatusOK

		for _, c := range checks {
			if c.Check == nil {
				health[c.Name] = "not configured"
				continue
			}
			if err := c.Check(ctx); err != nil {
				health[c.Name] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			health[c.Name] = "healthy"
		}

		JSON(w, status, health)
	}
}
