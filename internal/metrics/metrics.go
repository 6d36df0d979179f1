// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Child Metrics
	ChildStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trawler_child_starts_total",
			Help: "Total number of child process starts",
		},
		[]string{"reason"}, // "boot", "manual", "source-change", "crash"
	)

	ChildCrashes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trawler_child_crashes_total",
			Help: "Total number of unintentional child exits",
		},
	)

	ChildUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trawler_child_up",
			Help: "Whether a child process is currently running (1) or not (0)",
		},
	)

	CrashCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trawler_crash_count",
			Help: "Number of crashes in the current crash episode",
		},
	)

	// Log Metrics
	LogEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trawler_log_events_total",
			Help: "Total number of log events published to the event bus",
		},
		[]string{"entry_type"},
	)

	LogRotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trawler_log_rotations_total",
			Help: "Total number of log rotation checks by result",
		},
		[]string{"result"}, // "rotated", "skipped", "error"
	)

	SinkWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trawler_sink_write_errors_total",
			Help: "Total number of sink write failures",
		},
		[]string{"sink"},
	)

	// Notification Metrics
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trawler_notifications_total",
			Help: "Total number of notification attempts by notifier and result",
		},
		[]string{"notifier", "result"}, // result: "success", "failure", "throttled", "circuit_open"
	)

	// Watcher Metrics
	SourceChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trawler_source_changes_total",
			Help: "Total number of debounced source change signals",
		},
	)

	// Control API Metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trawler_api_requests_total",
			Help: "Total number of control API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trawler_api_request_duration_seconds",
			Help:    "Control API request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trawler_api_active_requests",
			Help: "Number of control API requests in flight",
		},
	)

	// Live Tail Metrics
	TailClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trawler_tail_clients",
			Help: "Number of connected live tail clients",
		},
	)

	TailDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trawler_tail_dropped_total",
			Help: "Total number of log events dropped by the live tail",
		},
	)
)

// RecordChildStart records a child start and marks the child as up.
func RecordChildStart(reason string) {
	ChildStarts.WithLabelValues(reason).Inc()
	ChildUp.Set(1)
}

// RecordChildExit marks the child as down. Crashes also bump the crash
// counter and publish the episode's crash count.
func RecordChildExit(crashed bool, crashCount int) {
	ChildUp.Set(0)
	if crashed {
		ChildCrashes.Inc()
	}
	CrashCount.Set(float64(crashCount))
}

// RecordRotation records the outcome of a rotation check.
func RecordRotation(rotated bool, err error) {
	switch {
	case err != nil:
		LogRotations.WithLabelValues("error").Inc()
	case rotated:
		LogRotations.WithLabelValues("rotated").Inc()
	default:
		LogRotations.WithLabelValues("skipped").Inc()
	}
}

// RecordNotification records a single notifier delivery outcome.
func RecordNotification(notifier, result string) {
	Notifications.WithLabelValues(notifier, result).Inc()
}

// RecordAPIRequest records a completed control API request.
func RecordAPIRequest(method, route, status string, seconds float64) {
	APIRequests.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}
