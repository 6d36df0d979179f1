// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

/*
Package supervisor runs and supervises a single child process.

# Engine

The Engine owns the child. A single goroutine (Run) reacts to child output,
child exit, debounced source changes, operator commands and sink reports:

	engine, err := supervisor.New(cfg, supervisor.Options{})
	if err != nil {
	    return err
	}
	err = engine.Run(ctx)
	os.Exit(supervisor.ExitCode(err))

Every stdout and stderr line becomes an app-output or app-error event on the
event bus; supervisor messages are trawler events on the same bus, so sinks
see both in the order they happened.

When the child exits without being asked to, the crash policy
(internal/policy) decides between restarting it, waiting for a source
change, and quitting. A quit notifies (bounded by crash.notify_timeout),
waits crash.quit_delay and makes Run return an *ExitError with code 1.

Stopping the child sends SIGINT to its process group and SIGKILL after
crash.stop_timeout. Output produced while stopping is still delivered.

# Tree

Tree is the suture v4 hierarchy for Trawler's own services:

	RootSupervisor ("trawler")
	├── EngineSupervisor ("engine-layer")
	│   └── EngineService
	├── MessagingSupervisor ("messaging-layer")
	│   └── TailHubService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

The engine service never restarts: when the engine returns, the tree is
torn down and the process exits with the engine's exit code. The control
API and the tail hub are restarted by suture if they fail.

# Thread Safety

Restart, Kill, Status and RotateLogs are safe for concurrent use. The
sink.Host methods never block.
*/
package supervisor
