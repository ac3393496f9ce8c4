package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.requestGuardMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/device", s.handleControlDevice)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleCreateDevice)
			r.Delete("/{id}", s.handleDeleteDevice)
		})

		r.Get("/pins", s.handleListPins)
		r.Get("/pins/usable", s.handleListUsablePins)

		r.Route("/actions", func(r chi.Router) {
			r.Get("/", s.handleListActions)
			r.Post("/", s.handleCreateAction)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetAction)
				r.Delete("/", s.handleDeleteAction)
				r.Post("/toggle", s.handleToggleAction)
				r.Post("/execute", s.handleExecuteAction)
				r.Get("/executions", s.handleListExecutions)
			})
		})

		r.Get("/audit", s.handleListAudit)

		r.Get(s.wsPath(), s.handleWebSocket)
	})

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path != "" {
		return s.wsCfg.Path
	}
	return "/ws"
}

type healthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

// handleHealth runs every registered health check. A failing check reports
// "degraded" but still answers 200 so the UI keeps working without MQTT.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Checks:        make(map[string]string, len(s.checks)),
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.checks[name].HealthCheck(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, http.StatusOK, resp)
}
