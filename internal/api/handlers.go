// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/trawler/internal/logging"
	"github.com/tomtom215/trawler/internal/policy"
	"github.com/tomtom215/trawler/internal/supervisor"
	"github.com/tomtom215/trawler/internal/websocket"
)

// commandTimeout bounds how long a request waits for the engine to accept
// a command.
const commandTimeout = 5 * time.Second

// Controller is satisfied by *supervisor.Engine.
type Controller interface {
	Restart(ctx context.Context) error
	Kill(ctx context.Context) error
	Status() supervisor.Status
	RotateLogs(force bool) []supervisor.RotationResult
	Sinks() []string
}

var _ Controller = (*supervisor.Engine)(nil)

// Handler serves the control API.
type Handler struct {
	ctl Controller
	hub *websocket.Hub
}

// NewHandler creates a handler. hub may be nil, which disables the live tail.
func NewHandler(ctl Controller, hub *websocket.Hub) *Handler {
	return &Handler{ctl: ctl, hub: hub}
}

// Health succeeds whenever the process serves requests.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}

// HealthReady succeeds while the child is running.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	s := h.ctl.Status()
	if s.State != policy.StateRunning {
		respondError(w, r, http.StatusServiceUnavailable, CodeNotReady, "app is "+string(s.State), nil)
		return
	}
	respondData(w, r, http.StatusOK, map[string]any{"status": "ready", "pid": s.PID})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, h.ctl.Status())
}

func (h *Handler) Sinks(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, h.ctl.Sinks())
}

// Restart requests a manual restart.
func (h *Handler) Restart(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, "restart", h.ctl.Restart)
}

// Stop stops the child and lets the supervisor exit.
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, "stop", h.ctl.Kill)
}

func (h *Handler) command(w http.ResponseWriter, r *http.Request, name string, run func(context.Context) error) {
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	err := run(ctx)
	switch {
	case err == nil:
		logging.Ctx(r.Context()).Info().Str("command", name).Msg("Control command accepted")
		respondData(w, r, http.StatusAccepted, map[string]string{"command": name, "result": "accepted"})
	case errors.Is(err, supervisor.ErrStopped):
		respondError(w, r, http.StatusConflict, CodeEngineStopped, "the supervisor is shutting down", err)
	case errors.Is(err, supervisor.ErrNotRunning):
		respondError(w, r, http.StatusServiceUnavailable, CodeEngineNotRunning, "the supervisor has not started", err)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, CodeTimeout, "the supervisor did not accept the command in time", err)
	default:
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "command failed", err)
	}
}

// Rotate runs the rotation check on every file sink.
func (h *Handler) Rotate(w http.ResponseWriter, r *http.Request) {
	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, CodeInvalidRequest, "force must be a boolean", err)
			return
		}
		force = v
	}
	respondData(w, r, http.StatusOK, h.ctl.RotateLogs(force))
}

// LogStream upgrades to a live tail WebSocket.
func (h *Handler) LogStream(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWS(h.hub, w, r)
}
