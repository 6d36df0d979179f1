// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

/*
Package services provides suture.Service wrappers for Trawler components.

Each wrapper translates a component's lifecycle into suture's
context-aware Serve pattern:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

Engine (EngineService):
  - Runs the supervisor engine exactly once
  - Reports the engine result and terminates the tree when it returns

HTTP Server (HTTPServerService):
  - Binds control.address and serves *http.Server on it, with graceful shutdown
  - Restarted by suture if the bind or the server fails

Log Tail Hub (TailHubService):
  - Runs the live tail hub that fans log events out to WebSocket clients

# Usage

	tree := supervisor.NewTree(logger, supervisor.DefaultTreeConfig())
	tree.Add(supervisor.LayerEngine, services.NewEngineService(engine, onExit))
	tree.Add(supervisor.LayerMessaging, services.NewTailHubService(hub))
	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, cfg.Control.Address, 5*time.Second))
*/
package services
