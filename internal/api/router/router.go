// Package router wires the HTTP surface together.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/medivuno/scheduler/internal/clinic"
	httpmiddleware "github.com/medivuno/scheduler/internal/http/middleware"
	"github.com/medivuno/scheduler/internal/schedule"
	"github.com/medivuno/scheduler/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger          *logging.Logger
	ScheduleHandler *schedule.Handler
	ClinicHandler   *clinic.Handler
	MetricsHandler  http.Handler

	CORSAllowedOrigins []string

	// DoctorAuthSecret enables JWT auth on appointment routes. Empty leaves
	// them open, which is only sensible for local development.
	DoctorAuthSecret string

	// RateLimitPerSec caps requests per client IP. Zero disables limiting.
	RateLimitPerSec float64
	RateLimitBurst  int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimitPerSec > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = int(cfg.RateLimitPerSec) * 2
		}
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSec, burst))
	}

	// Public endpoints.
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Appointment routes, optionally behind doctor JWT auth.
	r.Group(func(api chi.Router) {
		if cfg.DoctorAuthSecret != "" {
			api.Use(httpmiddleware.DoctorJWT(cfg.DoctorAuthSecret))
		}
		if cfg.ScheduleHandler != nil {
			api.Mount("/appointments", cfg.ScheduleHandler.Routes())
		}
		if cfg.ClinicHandler != nil {
			api.Route("/settings", func(r chi.Router) {
				r.Get("/", cfg.ClinicHandler.GetSettings)
				r.Put("/", cfg.ClinicHandler.UpdateSettings)
			})
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
