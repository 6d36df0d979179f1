// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package services

import "context"

// ContextHub is satisfied by *websocket.Hub.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// TailHubService runs the live tail hub under supervision.
type TailHubService struct {
	hub  ContextHub
	name string
}

// NewTailHubService wraps hub.
func NewTailHubService(hub ContextHub) *TailHubService {
	return &TailHubService{
		hub:  hub,
		name: "log-tail-hub",
	}
}

// Serve implements suture.Service.
func (s *TailHubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

func (s *TailHubService) String() string {
	return s.name
}
