// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

// Command trawler supervises a single worker process.
//
// It starts the configured executable, streams its stdout and stderr as
// NDJSON log events to the configured sinks, restarts it on crash according
// to the crash policy, restarts it when watched source files change, and
// sends notifications about crashes and lifecycle transitions.
//
// # Startup
//
//  1. Configuration: defaults, then trawler.yaml, then TRAWLER_* variables
//     (koanf), then command line flags
//  2. Logging: zerolog, configured from the logging section
//  3. Engine: sinks, notifiers and the source watcher
//  4. Service tree: the engine, plus the live tail hub and control API when
//     control.enabled is set
//
// # Signals
//
//   - SIGINT, SIGTERM: stop the app and exit with code 0
//   - SIGHUP: manual restart (resets the crash count)
//
// A second SIGINT or SIGTERM while stopping cancels the supervisor, which
// kills the app without waiting for the stop timeout.
//
// # Exit codes
//
//   - 0: operator initiated shutdown
//   - 1: restart disabled, restart limit reached, or an internal fault
//
// # Example
//
//	trawler --config ./trawler.yaml --env staging --stdall
package main
