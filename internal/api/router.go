package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/boxsync/internal/bridges/horizon"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/stats", s.handleDeviceStats)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Post("/commands", s.handleDeviceCommand)
				r.Put("/source", s.handleSelectSource)
			})
		})

		r.Route("/channels", func(r chi.Router) {
			r.Get("/", s.handleListChannels)
			r.Post("/refresh", s.handleRefreshChannels)
		})
	})

	return r
}

// handleHealth returns the server health status.
//
// The status is "degraded" while the broker connection is down.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.bridge.ConnState()
	status := "ok"
	if state != horizon.StateConnected {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"broker":  state.String(),
		"version": s.version,
	})
}
