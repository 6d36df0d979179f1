// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package event

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tomtom215/trawler/internal/metrics"
)

// Consumer receives encoded event lines.
//
// Consume is never called concurrently for the same Pipe, and never while
// the Pipe is corked.
type Consumer interface {
	Consume(line []byte) error
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(line []byte) error

// Consume calls f(line).
func (f ConsumerFunc) Consume(line []byte) error { return f(line) }

// Bus broadcasts every published event, in publication order, to each
// attached Pipe.
type Bus struct {
	mu    sync.Mutex
	pipes []*Pipe
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Attach registers a consumer and returns the Pipe that feeds it.
// Pipes receive events in attach order.
func (b *Bus) Attach(name string, c Consumer) *Pipe {
	p := &Pipe{name: name, consumer: c}
	b.mu.Lock()
	b.pipes = append(b.pipes, p)
	b.mu.Unlock()
	return p
}

// Detach removes a pipe. Lines still queued in a corked pipe are discarded.
func (b *Bus) Detach(p *Pipe) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.pipes {
		if existing == p {
			b.pipes = append(b.pipes[:i], b.pipes[i+1:]...)
			return
		}
	}
}

// Publish encodes ev once and writes the line to every pipe. A failing
// consumer does not stop delivery to the others; all failures are joined.
func (b *Bus) Publish(ev *LogEvent) error {
	line, err := ev.Encode()
	if err != nil {
		return err
	}
	metrics.LogEvents.WithLabelValues(string(ev.EntryType)).Inc()
	return b.PublishLine(line)
}

// PublishLine writes a pre-encoded line to every pipe.
func (b *Bus) PublishLine(line []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for _, p := range b.pipes {
		if err := p.Write(line); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
		}
	}
	return errors.Join(errs...)
}

// Pipe is a corkable, ordered delivery path into one consumer.
type Pipe struct {
	name     string
	consumer Consumer

	mu     sync.Mutex
	corked bool
	queue  [][]byte
}

// Name returns the name given at Attach.
func (p *Pipe) Name() string { return p.name }

// Write delivers line to the consumer, or queues it while corked.
func (p *Pipe) Write(line []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.corked {
		buf := make([]byte, len(line))
		copy(buf, line)
		p.queue = append(p.queue, buf)
		return nil
	}
	return p.consumer.Consume(line)
}

// Cork pauses delivery. When Cork returns, no Consume call is in flight.
func (p *Pipe) Cork() {
	p.mu.Lock()
	p.corked = true
	p.mu.Unlock()
}

// Uncork flushes queued lines in order and resumes direct delivery.
// A later Write cannot overtake a queued line.
func (p *Pipe) Uncork() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, line := range p.queue {
		if err := p.consumer.Consume(line); err != nil {
			errs = append(errs, err)
		}
	}
	p.queue = nil
	p.corked = false
	return errors.Join(errs...)
}

// Corked reports whether the pipe is currently paused.
func (p *Pipe) Corked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.corked
}

// Pending returns the number of queued lines.
func (p *Pipe) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}
