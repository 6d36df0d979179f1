// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package policy

import "github.com/tomtom215/trawler/internal/event"

// State is the supervisor's view of the child.
type State string

const (
	// StateIdle is the state before the first start.
	StateIdle                   State = "idle"
	StateRunning                State = "running"
	StateCrashed                State = "crashed"
	StateRestarting             State = "restarting"
	StateWaitingForSourceChange State = "waiting-for-source-change"
	StateQuitting               State = "quitting"
)

// Reason is why the child is being (re)started.
type Reason string

const (
	ReasonBoot         Reason = "boot"
	ReasonManual       Reason = "manual"
	ReasonSourceChange Reason = "source-change"
	ReasonCrash        Reason = "crash"
)

// ResetsCrashCount reports whether a restart for r starts a new crash episode.
func (r Reason) ResetsCrashCount() bool {
	return r == ReasonManual || r == ReasonSourceChange
}

// Lifecycle maps r to the lifecycle event fired when the child starts.
func (r Reason) Lifecycle() event.Lifecycle {
	switch r {
	case ReasonManual:
		return event.AppRestartManual
	case ReasonSourceChange:
		return event.AppRestartSourceChange
	case ReasonCrash:
		return event.AppRestartCrash
	default:
		return event.AppStart
	}
}

// Machine tracks the crash episode and state. It is not safe for concurrent
// use; the supervisor event loop owns it.
type Machine struct {
	cfg        Config
	state      State
	crashCount int
}

// NewMachine creates a machine in StateIdle.
func NewMachine(cfg Config) *Machine {
	return &Machine{cfg: cfg, state: StateIdle}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// CrashCount returns the crash count of the current episode.
func (m *Machine) CrashCount() int { return m.crashCount }

// Config returns the crash policy.
func (m *Machine) Config() Config { return m.cfg }

// Restarting records an intentional restart for reason. Manual and
// source-change restarts reset the crash counter.
func (m *Machine) Restarting(reason Reason) {
	if reason.ResetsCrashCount() {
		m.crashCount = 0
	}
	m.state = StateRestarting
}

// Started records that a child is running.
func (m *Machine) Started() {
	m.state = StateRunning
}

// Crash records an unexpected exit and returns the decision. The counter
// is always incremented, including when waiting for a source change.
func (m *Machine) Crash() Decision {
	m.state = StateCrashed
	d := Decide(m.cfg, m.crashCount)
	m.crashCount = d.CrashCount

	switch d.Action {
	case ActionRestart:
		m.state = StateRestarting
	case ActionWait:
		m.state = StateWaitingForSourceChange
	case ActionQuit:
		m.state = StateQuitting
	}
	return d
}

// Quitting records that the supervisor is shutting down.
func (m *Machine) Quitting() {
	m.state = StateQuitting
}
