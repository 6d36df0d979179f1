// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

/*
Package metrics provides Prometheus metrics for the supervisor.

Metrics are registered with the default registry through promauto and are
exposed at /metrics on the control API when it is enabled:

	curl http://127.0.0.1:7340/metrics

# Available Metrics

Child Metrics:
  - trawler_child_starts_total: Child starts (counter)
    Labels: reason (boot, manual, source-change, crash)
  - trawler_child_crashes_total: Unintentional child exits (counter)
  - trawler_child_up: 1 while a child is running (gauge)
  - trawler_crash_count: Crashes in the current crash episode (gauge)

Log Metrics:
  - trawler_log_events_total: Events published to the bus (counter)
    Labels: entry_type
  - trawler_log_rotations_total: Rotation checks (counter)
    Labels: result (rotated, skipped, error)
  - trawler_sink_write_errors_total: Sink write failures (counter)
    Labels: sink

Notification Metrics:
  - trawler_notifications_total: Notification attempts (counter)
    Labels: notifier, result (sent, failed, throttled, open)

Watcher Metrics:
  - trawler_source_changes_total: Debounced source change signals (counter)
*/
package metrics
