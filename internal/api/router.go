package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthPingTimeout bounds the hub reachability check in /health.
const healthPingTimeout = 5 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware())
	r.Use(s.bodySizeLimitMiddleware)

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Post("/refresh", s.handleRefresh)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/state", s.handleGetDeviceState)
				r.Put("/state", s.handleSetDeviceState)
				r.Get("/history", s.handleGetDeviceHistory)
			})
		})

		r.Route("/entities", func(r chi.Router) {
			r.Get("/", s.handleListEntities)
			r.Post("/reload", s.handleReloadEntities)
			r.Get("/{id}", s.handleGetEntity)
			r.Post("/{id}/actions/{action}", s.handleEntityAction)
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status            string `json:"status"`
	Version           string `json:"version"`
	HubReachable      bool   `json:"hub_reachable"`
	LastUpdateSuccess bool   `json:"last_update_success"`
	StreamConnected   bool   `json:"stream_connected"`
}

// handleHealth reports hub reachability and sync state. It answers 503
// while the hub is unreachable or the last snapshot fetch failed.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:            "ok",
		Version:           s.version,
		LastUpdateSuccess: s.coord.LastUpdateSuccess(),
		StreamConnected:   s.coord.StreamConnected(),
	}

	if s.hubClient != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := s.hubClient.Ping(ctx); err != nil {
			s.logger.Debug("hub ping failed", "error", err)
		} else {
			resp.HubReachable = true
		}
	} else {
		resp.HubReachable = resp.LastUpdateSuccess
	}

	status := http.StatusOK
	if !resp.HubReachable || !resp.LastUpdateSuccess {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
