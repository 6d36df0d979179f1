// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package policy

import (
	"testing"

	"github.com/tomtom215/trawler/internal/event"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		restarts   int
		wantAction Action
		wantClass  Classification
		wantQuit   string
	}{
		{
			name:       "restart under limit",
			cfg:        Config{AutoRestart: true, MaxRestarts: 3},
			restarts:   2,
			wantAction: ActionRestart,
			wantClass:  ClassCrash,
		},
		{
			name:       "limit reached",
			cfg:        Config{AutoRestart: true, MaxRestarts: 3},
			restarts:   3,
			wantAction: ActionQuit,
			wantClass:  ClassRestartLimit,
			wantQuit:   QuitMaxRestarts,
		},
		{
			name:       "unlimited",
			cfg:        Config{AutoRestart: true, MaxRestarts: 0},
			restarts:   10000,
			wantAction: ActionRestart,
			wantClass:  ClassCrash,
		},
		{
			name:       "restart disabled",
			cfg:        Config{AutoRestart: false, MaxRestarts: 3},
			restarts:   0,
			wantAction: ActionQuit,
			wantClass:  ClassNoRestart,
			wantQuit:   QuitRestartDisabled,
		},
		{
			name:       "restart disabled wins over limit",
			cfg:        Config{AutoRestart: false, MaxRestarts: 1},
			restarts:   5,
			wantAction: ActionQuit,
			wantClass:  ClassNoRestart,
			wantQuit:   QuitRestartDisabled,
		},
		{
			name:       "wait ignores limit",
			cfg:        Config{AutoRestart: true, MaxRestarts: 1, WaitForSourceChange: true},
			restarts:   7,
			wantAction: ActionWait,
			wantClass:  ClassCrash,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.cfg, tt.restarts)
			if d.Action != tt.wantAction {
				t.Errorf("expected action %s, got %s", tt.wantAction, d.Action)
			}
			if d.Classification != tt.wantClass {
				t.Errorf("expected classification %s, got %s", tt.wantClass, d.Classification)
			}
			if d.QuitMessage != tt.wantQuit {
				t.Errorf("expected quit message %q, got %q", tt.wantQuit, d.QuitMessage)
			}
			if d.CrashCount != tt.restarts+1 {
				t.Errorf("expected crash count %d, got %d", tt.restarts+1, d.CrashCount)
			}
		})
	}
}

func TestDecisionStatus(t *testing.T) {
	d := Decision{CrashCount: 2}
	if got := d.Status(5); got != "2/5" {
		t.Errorf("expected 2/5, got %s", got)
	}
	if got := d.Status(0); got != "2" {
		t.Errorf("expected 2, got %s", got)
	}
}

func TestMachineRestartsExactlyMaxTimes(t *testing.T) {
	for _, maxRestarts := range []int{1, 3, 5} {
		m := NewMachine(Config{AutoRestart: true, MaxRestarts: maxRestarts})
		m.Started()

		restarts := 0
		for crash := 1; crash <= maxRestarts+1; crash++ {
			d := m.Crash()
			if d.Action == ActionQuit {
				if crash != maxRestarts+1 {
					t.Fatalf("max=%d: quit on crash %d", maxRestarts, crash)
				}
				break
			}
			if d.CrashCount != crash {
				t.Errorf("max=%d: expected crash count %d, got %d", maxRestarts, crash, d.CrashCount)
			}
			restarts++
			m.Started()
		}
		if restarts != maxRestarts {
			t.Errorf("expected %d restarts, got %d", maxRestarts, restarts)
		}
		if m.State() != StateQuitting {
			t.Errorf("expected quitting state, got %s", m.State())
		}
	}
}

func TestMachineCounterReset(t *testing.T) {
	tests := []struct {
		reason    Reason
		wantCount int
	}{
		{reason: ReasonManual, wantCount: 0},
		{reason: ReasonSourceChange, wantCount: 0},
		{reason: ReasonCrash, wantCount: 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			m := NewMachine(Config{AutoRestart: true})
			m.Started()
			m.Crash()
			m.Started()
			m.Crash()

			m.Restarting(tt.reason)
			if m.CrashCount() != tt.wantCount {
				t.Errorf("expected crash count %d, got %d", tt.wantCount, m.CrashCount())
			}
			if m.State() != StateRestarting {
				t.Errorf("expected restarting, got %s", m.State())
			}
		})
	}
}

func TestMachineWaitState(t *testing.T) {
	m := NewMachine(Config{AutoRestart: true, WaitForSourceChange: true})
	m.Started()
	d := m.Crash()
	if d.Action != ActionWait {
		t.Fatalf("expected wait, got %s", d.Action)
	}
	if m.State() != StateWaitingForSourceChange {
		t.Errorf("expected waiting state, got %s", m.State())
	}
	if m.CrashCount() != 1 {
		t.Errorf("expected crash counter to still increment, got %d", m.CrashCount())
	}
}

func TestReasonLifecycle(t *testing.T) {
	tests := map[Reason]event.Lifecycle{
		ReasonBoot:         event.AppStart,
		ReasonManual:       event.AppRestartManual,
		ReasonSourceChange: event.AppRestartSourceChange,
		ReasonCrash:        event.AppRestartCrash,
	}
	for reason, want := range tests {
		if got := reason.Lifecycle(); got != want {
			t.Errorf("%s: expected %s, got %s", reason, want, got)
		}
	}
}
