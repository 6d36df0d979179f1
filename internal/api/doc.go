// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

/*
Package api implements the optional HTTP control API.

It is disabled by default and meant to be bound to a loopback address
(control.address). Routes:

	GET  /api/v1/health        process liveness (also /health/live)
	GET  /api/v1/health/ready  200 while the child is running, 503 otherwise
	GET  /api/v1/status        engine status
	GET  /api/v1/sinks         attached sinks
	POST /api/v1/restart       manual restart, resets the crash count
	POST /api/v1/stop          stop the child; the supervisor exits with code 0
	POST /api/v1/rotate        rotation check on file sinks (?force=true rotates now)
	GET  /api/v1/logs/stream   live tail over WebSocket (?types=app-output,trawler)
	GET  /metrics              Prometheus metrics

Responses share one envelope:

	{"status":"success","data":{...},"metadata":{"timestamp":"..."}}
	{"status":"error","data":null,"metadata":{...},"error":{"code":"ENGINE_STOPPED","message":"..."}}

Restart and stop share a rate limit (RouterOptions.CommandsPerMinute).
*/
package api
