// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

// Package policy decides what happens after the child exits unexpectedly.
//
// Decide is a pure function of the crash policy and the number of
// crash-triggered restarts already performed in the current crash episode.
// Machine wraps it with the episode counter and the supervisor state.
package policy

import "fmt"

// Action is the outcome of a crash decision.
type Action string

const (
	ActionRestart Action = "restart"
	ActionWait    Action = "wait"
	ActionQuit    Action = "quit"
)

// Classification is the notification type raised for a crash.
type Classification string

const (
	ClassCrash        Classification = "app-crash"
	ClassNoRestart    Classification = "app-no-restart"
	ClassRestartLimit Classification = "app-restart-limit"
)

// Config is the crash policy.
type Config struct {
	AutoRestart         bool
	MaxRestarts         int // 0 = unlimited
	WaitForSourceChange bool
}

// Decision is the result of Decide.
type Decision struct {
	Action         Action
	Classification Classification

	// CrashCount is the episode crash count including this crash.
	CrashCount int

	// TooMany is true when the restart limit has been reached.
	TooMany bool

	// QuitMessage is set when Action is ActionQuit.
	QuitMessage string
}

// Quit messages.
const (
	QuitRestartDisabled = "Restart on crash is disabled! Quitting..."
	QuitMaxRestarts     = "Max restarts reached! Quitting..."
)

// Decide classifies a crash. restarts is the number of crash-triggered
// restarts already performed in this episode.
//
// With WaitForSourceChange the limit is never evaluated and the action is
// always ActionWait.
func Decide(cfg Config, restarts int) Decision {
	d := Decision{CrashCount: restarts + 1}

	if cfg.WaitForSourceChange {
		d.Action = ActionWait
		d.Classification = ClassCrash
		if !cfg.AutoRestart {
			d.Classification = ClassNoRestart
		}
		return d
	}

	d.TooMany = cfg.MaxRestarts > 0 && restarts >= cfg.MaxRestarts

	switch {
	case !cfg.AutoRestart:
		d.Classification = ClassNoRestart
	case d.TooMany:
		d.Classification = ClassRestartLimit
	default:
		d.Classification = ClassCrash
	}

	if cfg.AutoRestart && !d.TooMany {
		d.Action = ActionRestart
		return d
	}

	d.Action = ActionQuit
	if !cfg.AutoRestart {
		d.QuitMessage = QuitRestartDisabled
	} else {
		d.QuitMessage = QuitMaxRestarts
	}
	return d
}

// Status renders the crash count as "n" or "n/max".
func (d Decision) Status(maxRestarts int) string {
	if maxRestarts > 0 {
		return fmt.Sprintf("%d/%d", d.CrashCount, maxRestarts)
	}
	return fmt.Sprintf("%d", d.CrashCount)
}
