// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/trawler/internal/middleware"
)

// DefaultCommandsPerMinute limits restart and stop requests.
const DefaultCommandsPerMinute = 10

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// CommandsPerMinute caps restart and stop requests. 0 uses
	// DefaultCommandsPerMinute; a negative value disables the limit.
	CommandsPerMinute int

	// CORSOrigins enables CORS for the listed origins. Empty disables it.
	CORSOrigins []string
}

// NewRouter builds the control API router.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	perMinute := opts.CommandsPerMinute
	if perMinute == 0 {
		perMinute = DefaultCommandsPerMinute
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
			MaxAge:         300,
		}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/health/live", h.Health)
		r.Get("/health/ready", h.HealthReady)
		r.Get("/status", h.Status)
		r.Get("/sinks", h.Sinks)
		r.Post("/rotate", h.Rotate)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(perMinute, time.Minute))
			r.Post("/restart", h.Restart)
			r.Post("/stop", h.Stop)
		})

		if h.hub != nil {
			r.Get("/logs/stream", h.LogStream)
		}
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}
