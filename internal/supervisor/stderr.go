// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package supervisor

import (
	"strings"
	"time"
)

// DefaultStderrWindow is how long a stderr line stays in the crash excerpt.
const DefaultStderrWindow = 50 * time.Millisecond

type stderrEntry struct {
	at   time.Time
	line string
}

// StderrBuffer keeps the stderr lines written shortly before the most recent
// one. A crash usually prints its trace in one burst just before exiting,
// so the window holds that burst and nothing older.
//
// It is owned by the engine goroutine and not safe for concurrent use.
type StderrBuffer struct {
	window  time.Duration
	entries []stderrEntry
}

// NewStderrBuffer creates a buffer. A non-positive window uses
// DefaultStderrWindow.
func NewStderrBuffer(window time.Duration) *StderrBuffer {
	if window <= 0 {
		window = DefaultStderrWindow
	}
	return &StderrBuffer{window: window}
}

// Add inserts a line stamped at and drops entries older than the window
// relative to at.
func (b *StderrBuffer) Add(at time.Time, line string) {
	b.entries = append(b.entries, stderrEntry{at: at, line: line})

	keep := 0
	for keep < len(b.entries) && at.Sub(b.entries[keep].at) > b.window {
		keep++
	}
	if keep > 0 {
		b.entries = append(b.entries[:0], b.entries[keep:]...)
	}
}

// Lines returns the buffered lines, oldest first.
func (b *StderrBuffer) Lines() []string {
	out := make([]string, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.line
	}
	return out
}

// String joins the buffered lines with newlines.
func (b *StderrBuffer) String() string {
	return strings.Join(b.Lines(), "\n")
}

// Len returns the number of buffered lines.
func (b *StderrBuffer) Len() int { return len(b.entries) }

// Reset empties the buffer.
func (b *StderrBuffer) Reset() { b.entries = b.entries[:0] }
