// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	// Default: 5
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	// Default: 30
	FailureDecay float64

	// FailureBackoff is the duration to wait when threshold is exceeded.
	// Default: 15s
	FailureBackoff time.Duration

	// ShutdownTimeout bounds how long each service may take to stop. It
	// must exceed crash.stop_timeout so the engine can reap the child.
	// Default: 10s
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c TreeConfig) withDefaults() TreeConfig {
	d := DefaultTreeConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = d.FailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = d.FailureBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

// Layer names a sub-supervisor of the tree.
type Layer string

const (
	// LayerEngine holds the EngineService. Its exit ends the whole tree.
	LayerEngine Layer = "engine-layer"

	// LayerMessaging holds the live tail hub.
	LayerMessaging Layer = "messaging-layer"

	// LayerAPI holds the control HTTP server.
	LayerAPI Layer = "api-layer"
)

var layers = []Layer{LayerEngine, LayerMessaging, LayerAPI}

// Tree runs Trawler's own long-lived services. The child process is
// supervised by the Engine; the tree only keeps the internals around it
// alive, so a failing control server is restarted by suture without
// touching the engine or the child.
type Tree struct {
	root   *suture.Supervisor
	layers map[Layer]*suture.Supervisor
	logger *slog.Logger
	config TreeConfig
}

// NewTree creates the root "trawler" supervisor and its layers. Suture
// events are written to logger.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	config = config.withDefaults()

	// MustHook has a pointer receiver.
	hook := (&sutureslog.Handler{Logger: logger}).MustHook()

	spec := func(withHook bool) suture.Spec {
		s := suture.Spec{
			FailureThreshold: config.FailureThreshold,
			FailureDecay:     config.FailureDecay,
			FailureBackoff:   config.FailureBackoff,
			Timeout:          config.ShutdownTimeout,
		}
		if withHook {
			s.EventHook = hook
		}
		return s
	}

	t := &Tree{
		root:   suture.New("trawler", spec(true)),
		layers: make(map[Layer]*suture.Supervisor, len(layers)),
		logger: logger,
		config: config,
	}
	for _, l := range layers {
		sup := suture.New(string(l), spec(false))
		t.layers[l] = sup
		t.root.Add(sup)
	}
	return t
}

// Root returns the root supervisor.
func (t *Tree) Root() *suture.Supervisor {
	return t.root
}

// Add adds svc to layer. Unknown layers panic.
func (t *Tree) Add(layer Layer, svc suture.Service) suture.ServiceToken {
	sup, ok := t.layers[layer]
	if !ok {
		panic("supervisor: unknown tree layer " + string(layer))
	}
	return sup.Add(svc)
}

// ServeBackground runs the tree in a goroutine. The channel receives the
// result when the tree stops.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// Run serves the tree until ctx is cancelled or a service terminates it,
// then logs every service that missed the shutdown timeout. Cancellation
// and tree termination are not errors.
func (t *Tree) Run(ctx context.Context) error {
	var result error
	for err := range t.root.ServeBackground(ctx) {
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, suture.ErrTerminateSupervisorTree) && result == nil {
			result = err
		}
	}

	unstopped, err := t.root.UnstoppedServiceReport()
	if err != nil {
		t.logger.Warn("unstopped service report failed", "err", err)
	}
	for _, svc := range unstopped {
		t.logger.Warn("service failed to stop in time", "service", svc.Name, "timeout", t.config.ShutdownTimeout)
	}
	return result
}
