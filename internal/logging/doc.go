// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

// Package logging provides the zerolog-based logger for the supervisor's own
// diagnostics.
//
// Child output never goes through this package; it is carried as LogEvents
// on the event bus. This logger covers everything the supervisor says about
// itself: startup, restarts, sink and notifier failures, and the suture
// service tree (through SlogHandler).
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "console",
//	})
//
//	logging.Info().Str("app", name).Msg("supervisor starting")
//	logging.Error().Err(err).Msg("notification failed")
//
// Always terminate log chains with .Msg() or .Send().
package logging
