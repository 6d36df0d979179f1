// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/trawler/internal/middleware"
	"github.com/tomtom215/trawler/internal/policy"
	"github.com/tomtom215/trawler/internal/supervisor"
)

type fakeController struct {
	mu        sync.Mutex
	status    supervisor.Status
	err       error
	restarts  int
	kills     int
	lastForce bool
}

func (f *fakeController) Restart(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts++
	return f.err
}

func (f *fakeController) Kill(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kills++
	return f.err
}

func (f *fakeController) Status() supervisor.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeController) RotateLogs(force bool) []supervisor.RotationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastForce = force
	return []supervisor.RotationResult{{Sink: "file:/tmp/app.log", Rotated: force}}
}

func (f *fakeController) Sinks() []string {
	return []string{"console", "file:/tmp/app.log"}
}

type envelope struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Metadata Metadata        `json:"metadata"`
	Error    *APIError       `json:"error"`
}

func newTestRouter(ctl Controller, opts RouterOptions) http.Handler {
	return NewRouter(NewHandler(ctl, nil), opts)
}

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
		}
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		state      policy.State
		wantStatus int
		wantCode   string
	}{
		{name: "health while idle", target: "/api/v1/health", state: policy.StateIdle, wantStatus: http.StatusOK},
		{name: "live while idle", target: "/api/v1/health/live", state: policy.StateIdle, wantStatus: http.StatusOK},
		{name: "ready while running", target: "/api/v1/health/ready", state: policy.StateRunning, wantStatus: http.StatusOK},
		{name: "not ready while waiting", target: "/api/v1/health/ready", state: policy.StateWaitingForSourceChange, wantStatus: http.StatusServiceUnavailable, wantCode: CodeNotReady},
		{name: "not ready while restarting", target: "/api/v1/health/ready", state: policy.StateRestarting, wantStatus: http.StatusServiceUnavailable, wantCode: CodeNotReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := &fakeController{status: supervisor.Status{State: tt.state, PID: 42}}
			rec, env := do(t, newTestRouter(ctl, RouterOptions{}), http.MethodGet, tt.target)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantCode == "" {
				if env.Status != "success" {
					t.Errorf("expected success envelope, got %q", env.Status)
				}
				return
			}
			if env.Error == nil || env.Error.Code != tt.wantCode {
				t.Errorf("expected error code %s, got %+v", tt.wantCode, env.Error)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	ctl := &fakeController{status: supervisor.Status{
		App:        "worker",
		Version:    "1.2.3",
		State:      policy.StateRunning,
		PID:        1234,
		Starts:     3,
		CrashCount: 2,
	}}
	rec, env := do(t, newTestRouter(ctl, RouterOptions{}), http.MethodGet, "/api/v1/status")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("expected Cache-Control no-store, got %q", rec.Header().Get("Cache-Control"))
	}
	if env.Metadata.Timestamp.IsZero() {
		t.Error("expected metadata timestamp")
	}
	if env.Metadata.RequestID == "" || env.Metadata.RequestID != rec.Header().Get(middleware.RequestIDHeader) {
		t.Errorf("expected request id %q in metadata, got %q", rec.Header().Get(middleware.RequestIDHeader), env.Metadata.RequestID)
	}

	var got supervisor.Status
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if got.App != "worker" || got.PID != 1234 || got.Starts != 3 || got.CrashCount != 2 || got.State != policy.StateRunning {
		t.Errorf("unexpected status %+v", got)
	}
}

func TestSinks(t *testing.T) {
	rec, env := do(t, newTestRouter(&fakeController{}, RouterOptions{}), http.MethodGet, "/api/v1/sinks")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var names []string
	if err := json.Unmarshal(env.Data, &names); err != nil {
		t.Fatalf("decode sinks: %v", err)
	}
	if len(names) != 2 || names[0] != "console" {
		t.Errorf("unexpected sinks %v", names)
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "restart accepted", target: "/api/v1/restart", wantStatus: http.StatusAccepted},
		{name: "stop accepted", target: "/api/v1/stop", wantStatus: http.StatusAccepted},
		{name: "engine stopped", target: "/api/v1/restart", err: supervisor.ErrStopped, wantStatus: http.StatusConflict, wantCode: CodeEngineStopped},
		{name: "engine not started", target: "/api/v1/stop", err: supervisor.ErrNotRunning, wantStatus: http.StatusServiceUnavailable, wantCode: CodeEngineNotRunning},
		{name: "timeout", target: "/api/v1/restart", err: context.DeadlineExceeded, wantStatus: http.StatusGatewayTimeout, wantCode: CodeTimeout},
		{name: "other error", target: "/api/v1/restart", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := &fakeController{err: tt.err}
			rec, env := do(t, newTestRouter(ctl, RouterOptions{CommandsPerMinute: -1}), http.MethodPost, tt.target)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantCode != "" && (env.Error == nil || env.Error.Code != tt.wantCode) {
				t.Errorf("expected error code %s, got %+v", tt.wantCode, env.Error)
			}
			if ctl.restarts+ctl.kills != 1 {
				t.Errorf("expected exactly one command, got %d restarts and %d kills", ctl.restarts, ctl.kills)
			}
		})
	}
}

func TestCommandsRequirePost(t *testing.T) {
	ctl := &fakeController{}
	rec, _ := do(t, newTestRouter(ctl, RouterOptions{}), http.MethodGet, "/api/v1/restart")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
	if ctl.restarts != 0 {
		t.Errorf("expected no restart, got %d", ctl.restarts)
	}
}

func TestCommandsRateLimited(t *testing.T) {
	ctl := &fakeController{}
	router := newTestRouter(ctl, RouterOptions{CommandsPerMinute: 2})

	for i := 0; i < 2; i++ {
		if rec, _ := do(t, router, http.MethodPost, "/api/v1/restart"); rec.Code != http.StatusAccepted {
			t.Fatalf("request %d: expected 202, got %d", i+1, rec.Code)
		}
	}

	rec, _ := do(t, router, http.MethodPost, "/api/v1/stop")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if ctl.kills != 0 {
		t.Errorf("expected the limited stop to be rejected, got %d kills", ctl.kills)
	}

	// Reads are not limited.
	if rec, _ := do(t, router, http.MethodGet, "/api/v1/status"); rec.Code != http.StatusOK {
		t.Errorf("expected status to stay available, got %d", rec.Code)
	}
}

func TestRotate(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantForce  bool
	}{
		{name: "check", target: "/api/v1/rotate", wantStatus: http.StatusOK},
		{name: "forced", target: "/api/v1/rotate?force=true", wantStatus: http.StatusOK, wantForce: true},
		{name: "invalid force", target: "/api/v1/rotate?force=maybe", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := &fakeController{}
			rec, env := do(t, newTestRouter(ctl, RouterOptions{}), http.MethodPost, tt.target)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus != http.StatusOK {
				if env.Error == nil || env.Error.Code != CodeInvalidRequest {
					t.Errorf("expected %s, got %+v", CodeInvalidRequest, env.Error)
				}
				return
			}
			if ctl.lastForce != tt.wantForce {
				t.Errorf("expected force=%v, got %v", tt.wantForce, ctl.lastForce)
			}
			var results []supervisor.RotationResult
			if err := json.Unmarshal(env.Data, &results); err != nil {
				t.Fatalf("decode results: %v", err)
			}
			if len(results) != 1 || results[0].Rotated != tt.wantForce {
				t.Errorf("unexpected results %+v", results)
			}
		})
	}
}

func TestLogStreamDisabledWithoutHub(t *testing.T) {
	rec, _ := do(t, newTestRouter(&fakeController{}, RouterOptions{}), http.MethodGet, "/api/v1/logs/stream")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(&fakeController{}, RouterOptions{})
	do(t, router, http.MethodGet, "/api/v1/health")

	rec, _ := do(t, router, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "trawler_api_requests_total") {
		t.Error("expected trawler_api_requests_total in metrics output")
	}
}

func TestSanitizeLogValue(t *testing.T) {
	if got := sanitizeLogValue("a\nb\rc"); got != "a b c" {
		t.Errorf("expected %q, got %q", "a b c", got)
	}
}

func TestCORS(t *testing.T) {
	router := newTestRouter(&fakeController{}, RouterOptions{CORSOrigins: []string{"http://localhost:3000"}})

	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{name: "allowed", origin: "http://localhost:3000", want: "http://localhost:3000"},
		{name: "not allowed", origin: "http://evil.example", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}
