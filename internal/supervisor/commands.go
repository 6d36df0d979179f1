// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package supervisor

import (
	"context"
	"fmt"

	"github.com/tomtom215/trawler/internal/event"
	"github.com/tomtom215/trawler/internal/sink"
)

// Restart stops the running child and starts a new one. It resets the crash
// count and, if the engine is waiting for a source change, starts the child
// immediately. It returns once the engine has accepted the request.
func (e *Engine) Restart(ctx context.Context) error {
	return e.send(ctx, cmdRestart)
}

// Kill stops the child and makes Run return nil once it has exited.
func (e *Engine) Kill(ctx context.Context) error {
	return e.send(ctx, cmdKill)
}

func (e *Engine) send(ctx context.Context, kind commandKind) error {
	if !e.running.Load() {
		return ErrNotRunning
	}
	cmd := command{kind: kind, reply: make(chan error, 1)}
	select {
	case e.cmds <- cmd:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current engine status.
func (e *Engine) Status() Status {
	s := *e.status.Load()
	s.WatcherReady = e.watcher != nil && e.watcher.IsReady()
	return s.withUptime(e.now())
}

// RotationResult is the outcome of rotating one file sink.
type RotationResult struct {
	Sink    string `json:"sink"`
	Rotated bool   `json:"rotated"`
	Error   string `json:"error,omitempty"`
}

// RotateLogs runs the rotation check on every file sink. With force the
// active file is rotated even when it was started today.
func (e *Engine) RotateLogs(force bool) []RotationResult {
	results := make([]RotationResult, 0, len(e.sinks))
	for _, s := range e.sinks {
		f, ok := s.(*sink.File)
		if !ok {
			continue
		}
		var rotated bool
		var err error
		if force {
			rotated, err = f.Rotate()
		} else {
			rotated, err = f.CheckAndRotate()
		}
		r := RotationResult{Sink: f.Name(), Rotated: rotated}
		if err != nil {
			r.Error = err.Error()
			e.Report(event.KindError, fmt.Sprintf("Log rotation failed for %s.", f.Path()), err)
		}
		results = append(results, r)
	}
	return results
}

// Sinks returns the names of the attached sinks.
func (e *Engine) Sinks() []string {
	names := make([]string, len(e.sinks))
	for i, s := range e.sinks {
		names[i] = s.Name()
	}
	return names
}
