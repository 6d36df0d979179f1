// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package supervisor

import (
	"errors"
	"fmt"
)

var (
	// ErrStopped is returned by commands sent after the engine has exited.
	ErrStopped = errors.New("supervisor: engine stopped")

	// ErrNotRunning is returned when an operation needs a running engine
	// that has not started yet.
	ErrNotRunning = errors.New("supervisor: engine not running")
)

// ExitError carries the process exit code chosen by the engine.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("supervisor exited with code %d", e.Code)
	}
	return fmt.Sprintf("supervisor exited with code %d: %v", e.Code, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an engine result to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
