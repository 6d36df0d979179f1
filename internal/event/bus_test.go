// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package event

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (r *recorder) Consume(line []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, strings.TrimSuffix(string(line), "\n"))
	return r.err
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

func TestBusDeliversInOrderToEveryPipe(t *testing.T) {
	bus := NewBus()
	a, b := &recorder{}, &recorder{}
	bus.Attach("a", a)
	bus.Attach("b", b)

	for _, s := range []string{"one", "two", "three"} {
		if err := bus.PublishLine([]byte(s + "\n")); err != nil {
			t.Fatalf("publish %q: %v", s, err)
		}
	}

	for name, r := range map[string]*recorder{"a": a, "b": b} {
		got := strings.Join(r.snapshot(), ",")
		if got != "one,two,three" {
			t.Errorf("pipe %s: expected one,two,three, got %s", name, got)
		}
	}
}

func TestBusFailingConsumerDoesNotBlockOthers(t *testing.T) {
	bus := NewBus()
	bad := &recorder{err: errors.New("disk full")}
	good := &recorder{}
	bus.Attach("bad", bad)
	bus.Attach("good", good)

	err := bus.PublishLine([]byte("x\n"))
	if err == nil {
		t.Fatal("expected joined error from failing consumer")
	}
	if !strings.Contains(err.Error(), "bad: disk full") {
		t.Errorf("expected error to name the pipe, got %v", err)
	}
	if len(good.snapshot()) != 1 {
		t.Errorf("expected good consumer to receive the line")
	}
}

func TestPipeCorkPreservesOrder(t *testing.T) {
	bus := NewBus()
	r := &recorder{}
	p := bus.Attach("file", r)

	_ = bus.PublishLine([]byte("before\n"))
	p.Cork()
	if !p.Corked() {
		t.Fatal("expected pipe to be corked")
	}
	_ = bus.PublishLine([]byte("during-1\n"))
	_ = bus.PublishLine([]byte("during-2\n"))

	if got := len(r.snapshot()); got != 1 {
		t.Fatalf("expected corked pipe to hold writes, consumer saw %d lines", got)
	}
	if p.Pending() != 2 {
		t.Errorf("expected 2 pending lines, got %d", p.Pending())
	}

	if err := p.Uncork(); err != nil {
		t.Fatalf("uncork: %v", err)
	}
	_ = bus.PublishLine([]byte("after\n"))

	got := strings.Join(r.snapshot(), ",")
	if got != "before,during-1,during-2,after" {
		t.Errorf("unexpected order: %s", got)
	}
}

func TestPipeCorkCopiesQueuedLines(t *testing.T) {
	r := &recorder{}
	p := NewBus().Attach("file", r)
	p.Cork()

	buf := []byte("abc\n")
	_ = p.Write(buf)
	buf[0] = 'z'

	_ = p.Uncork()
	if got := r.snapshot(); len(got) != 1 || got[0] != "abc" {
		t.Errorf("expected queued copy abc, got %v", got)
	}
}

func TestBusDetach(t *testing.T) {
	bus := NewBus()
	r := &recorder{}
	p := bus.Attach("tail", r)
	bus.Detach(p)
	_ = bus.PublishLine([]byte("x\n"))
	if len(r.snapshot()) != 0 {
		t.Error("expected detached pipe to receive nothing")
	}
}

func TestStampNewAndRoundTrip(t *testing.T) {
	boot := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := &Stamp{Name: "api", Hostname: "web-1", PID: 42, SupervisorStart: boot}

	now := boot.Add(1500 * time.Millisecond)
	ev := s.New(now, EntryTrawler, "hello", nil)
	if ev.AppUptimeMs != 0 {
		t.Errorf("expected zero app uptime before start, got %d", ev.AppUptimeMs)
	}
	if ev.SupervisorUptimeMs != 1500 {
		t.Errorf("expected supervisor uptime 1500, got %d", ev.SupervisorUptimeMs)
	}
	if ev.Time != "2026-03-01T10:00:01.500Z" {
		t.Errorf("unexpected time %s", ev.Time)
	}

	s.AppStart = boot.Add(time.Second)
	ev = s.New(now, EntryAppOutput, "line", map[string]any{"k": "v"})
	if ev.AppUptimeMs != 500 {
		t.Errorf("expected app uptime 500, got %d", ev.AppUptimeMs)
	}

	line, err := ev.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if line[len(line)-1] != '\n' {
		t.Error("expected trailing newline")
	}
	if strings.Contains(string(line), `"error"`) {
		t.Error("expected error field to be omitted when empty")
	}

	parsed, err := Parse(line)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ts, err := parsed.Timestamp()
	if err != nil {
		t.Fatalf("timestamp: %v", err)
	}
	if !ts.Equal(now) {
		t.Errorf("expected %v, got %v", now, ts)
	}
	if parsed.EntryType != EntryAppOutput {
		t.Errorf("expected app-output, got %s", parsed.EntryType)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr error
	}{
		{name: "empty", line: "   \n", wantErr: ErrEmptyLine},
		{name: "not json", line: "hello world"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.line))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLifecycleValid(t *testing.T) {
	for _, l := range AllLifecycles {
		if !l.Valid() {
			t.Errorf("expected %s to be valid", l)
		}
	}
	if Lifecycle("app-exploded").Valid() {
		t.Error("expected unknown lifecycle to be invalid")
	}
}
