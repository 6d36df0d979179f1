// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

/*
Package websocket streams the supervisor's log events to live tail clients.

The Hub is an event.Consumer attached to the engine's event bus: every
encoded event line is broadcast to connected clients as

	{"type":"log","data":{...LogEvent...}}

Clients may restrict the stream with ?types=app-output,app-error,trawler.
A newly connected client first receives the most recent events (up to
HistorySize) so a tail does not start empty.

Each Client runs two goroutines: readPump answers {"type":"ping"} with
{"type":"pong"} and detects disconnects, writePump writes queued messages
and keeps the connection alive with WebSocket pings.

Consume never blocks the bus. When the hub falls behind, lines are dropped
and counted in trawler_tail_dropped_total; a client whose queue is full is
disconnected.

	hub := websocket.NewHub()
	engine.Bus().Attach("live-tail", hub)
	tree.Add(supervisor.LayerMessaging, services.NewTailHubService(hub))
	r.Get("/api/v1/logs/stream", func(w http.ResponseWriter, r *http.Request) {
	    websocket.ServeWS(hub, w, r)
	})
*/
package websocket
