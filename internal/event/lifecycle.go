// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package event

import "time"

// Lifecycle names a child lifecycle transition.
type Lifecycle string

const (
	AppStart               Lifecycle = "app-start"
	AppRestartManual       Lifecycle = "app-restart-manual"
	AppRestartSourceChange Lifecycle = "app-restart-source-change"
	AppRestartCrash        Lifecycle = "app-restart-crash"
)

// AllLifecycles lists every lifecycle type in emission order.
var AllLifecycles = []Lifecycle{AppStart, AppRestartManual, AppRestartSourceChange, AppRestartCrash}

// Valid reports whether l is a known lifecycle type.
func (l Lifecycle) Valid() bool {
	for _, known := range AllLifecycles {
		if l == known {
			return true
		}
	}
	return false
}

// LifecycleEvent is fired to sinks and notifiers on every start or restart.
type LifecycleEvent struct {
	Type       Lifecycle
	Time       time.Time
	PID        int
	Starts     int
	CrashCount int
}
