// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package supervisor

import (
	"time"

	"github.com/tomtom215/trawler/internal/policy"
)

// Status is a point-in-time view of the engine, safe to read from any
// goroutine.
type Status struct {
	App     string       `json:"app"`
	Version string       `json:"version"`
	Env     string       `json:"env"`
	State   policy.State `json:"state"`

	// PID is 0 when no child is running.
	PID        int `json:"pid"`
	Starts     int `json:"starts"`
	CrashCount int `json:"crashCount"`

	StartedAt          *time.Time `json:"startedAt,omitempty"`
	SupervisorStart    time.Time  `json:"supervisorStart"`
	AppUptimeMs        int64      `json:"appUptimeMs"`
	SupervisorUptimeMs int64      `json:"supervisorUptimeMs"`
	WatcherReady       bool       `json:"watcherReady"`
}

// withUptime returns a copy with uptimes computed at now.
func (s Status) withUptime(now time.Time) Status {
	if s.StartedAt != nil && s.PID != 0 {
		s.AppUptimeMs = now.Sub(*s.StartedAt).Milliseconds()
	}
	s.SupervisorUptimeMs = now.Sub(s.SupervisorStart).Milliseconds()
	return s
}
