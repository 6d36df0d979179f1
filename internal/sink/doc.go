// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

/*
Package sink persists the supervisor's event stream.

Every sink is attached to the event bus through its own corkable pipe and
receives each encoded event line in publication order. Sinks are declared
in configuration by a type tag and built through the registry:

	s, err := sink.New(cfg, sink.Deps{AppName: "api", Host: host})
	pipe := bus.Attach(s.Name(), s)
	if err := s.Init(ctx, pipe); err != nil {
	    // fatal: the child is never started
	}

# File Sink

The file sink appends events as JSON lines to <location>/<app>/<log_name>.log
and rotates the file at most once per UTC day:

	crash.log      active file
	crash.log.0    yesterday
	crash.log.1    the day before
	...

Rotation corks the sink's pipe while the active file is swapped, so events
published during rotation are queued and written to the new file in order.

# Host

Sinks never talk to notifiers or the process supervisor directly. Errors
that must be surfaced go through the Host, which the supervisor implements.
Host methods may be called with the pipe lock held and must not block.
*/
package sink
