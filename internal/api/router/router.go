package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/dentalcrm/internal/http/middleware"
	"github.com/wolfman30/dentalcrm/internal/http/respond"
	"github.com/wolfman30/dentalcrm/internal/messaging"
	"github.com/wolfman30/dentalcrm/internal/patients"
	"github.com/wolfman30/dentalcrm/internal/stats"
	"github.com/wolfman30/dentalcrm/internal/templates"
	"github.com/wolfman30/dentalcrm/pkg/logging"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger           *logging.Logger
	PatientsHandler  *patients.Handler
	StatsHandler     *stats.Handler
	TemplatesHandler *templates.Handler
	MessagingHandler *messaging.Handler

	// OperatorAuthSecret enables JWT auth on /api when set.
	OperatorAuthSecret string
	RateLimiter        *httpmiddleware.RateLimiter
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	HealthChecks       map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		if cfg.OperatorAuthSecret != "" {
			api.Use(httpmiddleware.OperatorJWT(cfg.OperatorAuthSecret))
		}

		if h := cfg.PatientsHandler; h != nil {
			api.Route("/patients", func(pr chi.Router) {
				pr.Get("/", h.ListPatients)
				pr.Post("/", h.CreatePatient)
				pr.Route("/{id}", func(one chi.Router) {
					one.Get("/", h.GetPatient)
					one.Put("/", h.UpdatePatient)
					one.Delete("/", h.DeletePatient)
					one.Post("/callback", h.AddCallback)
					one.Put("/status", h.UpdateStatus)
					one.Put("/consultation", h.UpdateConsultation)
					one.Put("/teeth", h.ConfirmTeeth)
					one.Put("/post-visit-status", h.UpdatePostVisitStatus)
					one.Put("/post-visit-consultation", h.UpdatePostVisitConsultation)
				})
			})
			api.Get("/callbacks/due", h.DueCallbacks)
		}

		if h := cfg.StatsHandler; h != nil {
			api.Route("/stats", func(sr chi.Router) {
				sr.Get("/funnel", h.GetFunnel)
				sr.Get("/trend", h.GetTrend)
				sr.Get("/trend/export", h.ExportTrend)
				sr.Get("/cumulative", h.GetCumulative)
			})
		}

		if h := cfg.TemplatesHandler; h != nil {
			api.Route("/templates", func(tr chi.Router) {
				tr.Get("/", h.ListTemplates)
				tr.Post("/", h.CreateTemplate)
				tr.Get("/{id}", h.GetTemplate)
				tr.Put("/{id}", h.UpdateTemplate)
				tr.Delete("/{id}", h.DeleteTemplate)
				tr.Post("/{id}/preview", h.PreviewTemplate)
			})
			api.Route("/categories", func(cr chi.Router) {
				cr.Get("/", h.ListCategories)
				cr.Post("/", h.CreateCategory)
				cr.Put("/{id}", h.UpdateCategory)
				cr.Delete("/{id}", h.DeleteCategory)
			})
		}

		if h := cfg.MessagingHandler; h != nil {
			api.Post("/messages/send", h.Send)
			api.Get("/messages/logs", h.ListLogs)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusNotFound, respond.CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, respond.CodeBadRequest, "method not allowed")
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = "error: " + err.Error()
				status = "degraded"
				continue
			}
			deps[name] = "ok"
		}
		code := http.StatusOK
		if status != "ok" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "dependencies": deps})
	}
}
