// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package watch

import (
	"sync"
	"time"
)

// Debouncer coalesces triggers: each Trigger restarts a single timer, and
// fn runs once with the most recent path after a quiet period.
type Debouncer struct {
	delay time.Duration
	fn    func(path string)

	mu    sync.Mutex
	timer *time.Timer
	last  string
	gen   uint64
}

// NewDebouncer creates a debouncer that calls fn after delay of quiet.
func NewDebouncer(delay time.Duration, fn func(path string)) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger records an event and (re)arms the timer.
func (d *Debouncer) Trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last = path
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// fire ignores timers superseded by a later Trigger or by Stop.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	path := d.last
	d.timer = nil
	d.mu.Unlock()

	d.fn(path)
}

// Pending reports whether a timer is armed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any armed timer.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
