// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

// Package event defines the structured log event written for every line of
// child output and every supervisor message, and the ordered broadcast bus
// that carries those events to sinks.
//
// # Wire Format
//
// Events are encoded as one JSON object per line:
//
//	{"name":"api","hostname":"web-1","pid":4242,"time":"2026-01-02T03:04:05.000Z",
//	 "appUptimeMs":1200,"supervisorUptimeMs":5400,"entryType":"app-output",
//	 "message":"listening on :8080","data":{}}
//
// # Corking
//
// Each consumer attached to the Bus is wrapped in a Pipe. A corked Pipe
// queues lines instead of delivering them; Uncork flushes the queue in
// production order before any later line is delivered. The file sink corks
// its own Pipe while it swaps file handles during rotation.
package event
