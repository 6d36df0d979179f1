// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

/*
Package middleware provides the HTTP middleware used by the control API.

  - RequestID: X-Request-ID propagation into the request context and logs
  - PrometheusMetrics: request counts, durations and in-flight gauge, labelled
    by chi route pattern so path parameters do not explode cardinality
  - RateLimit: a token bucket shared by every caller of the wrapped routes,
    used for commands that restart or stop the child

All of them have the chi signature func(http.Handler) http.Handler:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.With(middleware.RateLimit(10, time.Minute)).Post("/api/v1/restart", h.Restart)
*/
package middleware
