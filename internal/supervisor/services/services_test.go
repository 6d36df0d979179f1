// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package services

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var (
	_ suture.Service = (*HTTPServerService)(nil)
	_ suture.Service = (*TailHubService)(nil)
	_ suture.Service = (*EngineService)(nil)
)

type mockHTTPServer struct {
	serveErr    error
	shutdownErr error
	serves      atomic.Int32
	shutdowns   atomic.Int32
	started     chan string
	stopCh      chan struct{}
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{
		started: make(chan string, 1),
		stopCh:  make(chan struct{}),
	}
}

func (m *mockHTTPServer) Serve(ln net.Listener) error {
	defer ln.Close()
	m.serves.Add(1)
	select {
	case m.started <- ln.Addr().String():
	default:
	}
	if m.serveErr != nil {
		return m.serveErr
	}
	<-m.stopCh
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	m.shutdowns.Add(1)
	close(m.stopCh)
	return m.shutdownErr
}

func TestNewHTTPServerServiceDefaults(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{in: 3 * time.Second, want: 3 * time.Second},
		{in: 0, want: 10 * time.Second},
		{in: -time.Second, want: 10 * time.Second},
	}
	for _, tt := range tests {
		svc := NewHTTPServerService(newMockHTTPServer(), "127.0.0.1:0", tt.in)
		if svc.shutdownTimeout != tt.want {
			t.Errorf("NewHTTPServerService(%v) timeout = %v, want %v", tt.in, svc.shutdownTimeout, tt.want)
		}
	}
	svc := NewHTTPServerService(newMockHTTPServer(), "127.0.0.1:0", 0)
	if got := svc.String(); got != "control-api" {
		t.Errorf("String() = %q, want control-api", got)
	}
	if svc.Addr() != "" {
		t.Errorf("Addr() = %q before Serve, want empty", svc.Addr())
	}
}

func TestHTTPServerServiceServe(t *testing.T) {
	t.Run("graceful shutdown on cancel", func(t *testing.T) {
		server := newMockHTTPServer()
		svc := NewHTTPServerService(server, "127.0.0.1:0", time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		addr := <-server.started
		if got := svc.Addr(); got != addr {
			t.Errorf("Addr() = %q, want %q", got, addr)
		}
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return after cancellation")
		}
		if server.shutdowns.Load() != 1 {
			t.Errorf("Shutdown called %d times, want 1", server.shutdowns.Load())
		}
		if svc.Addr() != "" {
			t.Errorf("Addr() = %q after Serve, want empty", svc.Addr())
		}
	})

	t.Run("address in use", func(t *testing.T) {
		taken, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		defer taken.Close()

		server := newMockHTTPServer()
		err = NewHTTPServerService(server, taken.Addr().String(), time.Second).Serve(context.Background())
		if err == nil {
			t.Fatal("expected a listen error")
		}
		if server.serves.Load() != 0 {
			t.Errorf("Serve called %d times, want 0", server.serves.Load())
		}
	})

	t.Run("serve failure", func(t *testing.T) {
		serveErr := errors.New("accept: too many open files")
		server := newMockHTTPServer()
		server.serveErr = serveErr

		err := NewHTTPServerService(server, "127.0.0.1:0", time.Second).Serve(context.Background())
		if !errors.Is(err, serveErr) {
			t.Errorf("Serve() = %v, want %v", err, serveErr)
		}
	})

	t.Run("shutdown failure", func(t *testing.T) {
		shutdownErr := errors.New("shutdown timeout")
		server := newMockHTTPServer()
		server.shutdownErr = shutdownErr
		svc := NewHTTPServerService(server, "127.0.0.1:0", time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		<-server.started
		cancel()
		if err := <-errCh; !errors.Is(err, shutdownErr) {
			t.Errorf("Serve() = %v, want %v", err, shutdownErr)
		}
	})

	t.Run("real http server", func(t *testing.T) {
		server := &http.Server{
			Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}),
			ReadHeaderTimeout: time.Second,
		}
		svc := NewHTTPServerService(server, "127.0.0.1:0", time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()
		defer func() {
			cancel()
			<-errCh
		}()

		deadline := time.Now().Add(2 * time.Second)
		for svc.Addr() == "" && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		resp, err := http.Get("http://" + svc.Addr() + "/")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("status = %d, want 204", resp.StatusCode)
		}
	})
}

type mockHub struct{ runs atomic.Int32 }

func (m *mockHub) RunWithContext(ctx context.Context) error {
	m.runs.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestTailHubService(t *testing.T) {
	hub := &mockHub{}
	svc := NewTailHubService(hub)
	if svc.String() != "log-tail-hub" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
	if hub.runs.Load() != 1 {
		t.Errorf("hub ran %d times, want 1", hub.runs.Load())
	}
}

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

func TestEngineServiceTerminatesTree(t *testing.T) {
	exitErr := errors.New("max restarts reached")
	var runs atomic.Int32
	got := make(chan error, 1)

	svc := NewEngineService(runnerFunc(func(context.Context) error {
		runs.Add(1)
		return exitErr
	}), func(err error) { got <- err })

	sup := suture.New("test", suture.Spec{
		FailureBackoff: 10 * time.Millisecond,
		Timeout:        time.Second,
	})
	sup.Add(svc)

	select {
	case <-sup.ServeBackground(context.Background()):
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor was not terminated")
	}
	if err := <-got; !errors.Is(err, exitErr) {
		t.Errorf("onExit received %v, want %v", err, exitErr)
	}
	if runs.Load() != 1 {
		t.Errorf("engine ran %d times, want 1", runs.Load())
	}
}

func TestEngineServiceRunsOnce(t *testing.T) {
	var runs atomic.Int32
	svc := NewEngineService(runnerFunc(func(context.Context) error {
		runs.Add(1)
		return nil
	}), nil)

	if err := svc.Serve(context.Background()); !errors.Is(err, suture.ErrTerminateSupervisorTree) {
		t.Fatalf("first Serve() = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("second Serve() = %v, want context.Canceled", err)
	}
	if runs.Load() != 1 {
		t.Errorf("engine ran %d times, want 1", runs.Load())
	}
}
