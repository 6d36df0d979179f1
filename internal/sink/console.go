// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package sink

import (
	"context"
	"io"
	"sync"

	"github.com/tomtom215/trawler/internal/event"
)

// Console echoes the child's own output to the supervisor's terminal.
// It is attached by the supervisor when console passthrough is enabled
// and is not declared in the sink list.
type Console struct {
	stdout io.Writer
	stderr io.Writer

	mu sync.Mutex
}

// NewConsole returns a console sink. A nil writer disables that stream.
func NewConsole(stdout, stderr io.Writer) *Console {
	return &Console{stdout: stdout, stderr: stderr}
}

// Name implements Sink.
func (c *Console) Name() string { return "console" }

// Init implements Sink.
func (c *Console) Init(context.Context, *event.Pipe) error { return nil }

// OnLifecycle implements Sink.
func (c *Console) OnLifecycle(event.LifecycleEvent) {}

// Close implements Sink.
func (c *Console) Close() error { return nil }

// Consume writes the message of app-output and app-error entries.
func (c *Console) Consume(line []byte) error {
	ev, err := event.Parse(line)
	if err != nil {
		return err
	}

	var w io.Writer
	switch ev.EntryType {
	case event.EntryAppOutput:
		w = c.stdout
	case event.EntryAppError:
		w = c.stderr
	}
	if w == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = io.WriteString(w, ev.Message+"\n")
	return err
}
