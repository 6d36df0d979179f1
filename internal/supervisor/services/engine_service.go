// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package services

import (
	"context"
	"sync"

	"github.com/thejerf/suture/v4"
)

// Runner is satisfied by *supervisor.Engine.
type Runner interface {
	Run(ctx context.Context) error
}

// EngineService runs the engine once. The engine owns the child and its
// restart policy, so suture must never restart it: whatever Run returns is
// handed to onExit and the whole tree is terminated.
type EngineService struct {
	engine Runner
	onExit func(err error)
	once   sync.Once
	name   string
}

// NewEngineService wraps engine. onExit receives the engine result and may
// be nil.
func NewEngineService(engine Runner, onExit func(err error)) *EngineService {
	return &EngineService{
		engine: engine,
		onExit: onExit,
		name:   "engine",
	}
}

// Serve implements suture.Service.
func (s *EngineService) Serve(ctx context.Context) error {
	ran := false
	s.once.Do(func() {
		ran = true
		err := s.engine.Run(ctx)
		if s.onExit != nil {
			s.onExit(err)
		}
	})
	if !ran {
		<-ctx.Done()
		return ctx.Err()
	}
	return suture.ErrTerminateSupervisorTree
}

func (s *EngineService) String() string {
	return s.name
}
