// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package sink

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/trawler/internal/config"
	"github.com/tomtom215/trawler/internal/event"
)

// ErrUnknownType is returned for a sink declaration whose type has no
// registered implementation.
var ErrUnknownType = errors.New("unknown sink type")

// Sink consumes encoded event lines.
type Sink interface {
	event.Consumer

	// Name identifies the sink in logs and metrics.
	Name() string

	// Init prepares the sink. pipe is the sink's own path from the bus.
	// An error is fatal to the supervisor.
	Init(ctx context.Context, pipe *event.Pipe) error

	// OnLifecycle is called after every child start or restart.
	OnLifecycle(ev event.LifecycleEvent)

	Close() error
}

// Host is the supervisor surface available to sinks. Implementations must
// not block: sinks call them from inside Consume.
type Host interface {
	// Report writes a trawler entry of the given kind.
	Report(kind event.Kind, message string, err error)

	// NotifyError dispatches a trawler-error notification.
	NotifyError(message string, err error)

	// Fatal stops the supervisor with err.
	Fatal(err error)

	// Ignore excludes path from source-change detection.
	Ignore(path string) error
}

// Deps are the collaborators passed to every sink factory.
type Deps struct {
	AppName string

	// WorkDir resolves relative locations. Empty means the process
	// working directory.
	WorkDir string

	Host Host

	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// Factory builds a sink from its declaration.
type Factory func(cfg config.SinkConfig, deps Deps) (Sink, error)

var registry = map[string]Factory{
	"file": newFileFromConfig,
}

// New builds the sink named by cfg.Type.
func New(cfg config.SinkConfig, deps Deps) (Sink, error) {
	factory, ok := registry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
	if deps.Host == nil {
		deps.Host = NopHost{}
	}
	return factory(cfg, deps)
}

// Types returns the registered sink types, sorted.
func Types() []string {
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// NopHost discards everything.
type NopHost struct{}

func (NopHost) Report(event.Kind, string, error) {}
func (NopHost) NotifyError(string, error)        {}
func (NopHost) Fatal(error)                      {}
func (NopHost) Ignore(string) error              { return nil }
