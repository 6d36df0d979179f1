// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/trawler/internal/api"
	"github.com/tomtom215/trawler/internal/config"
	"github.com/tomtom215/trawler/internal/logging"
	"github.com/tomtom215/trawler/internal/supervisor"
	"github.com/tomtom215/trawler/internal/supervisor/services"
	"github.com/tomtom215/trawler/internal/websocket"
)

// shutdownGrace is added to the stop timeout so suture waits for the child
// to be reaped.
const shutdownGrace = 5 * time.Second

func run(parent context.Context, o config.Overrides) error {
	cfg, err := config.Load(o)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return &supervisor.ExitError{Code: 1, Err: err}
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Fields:    map[string]string{"app": cfg.App.Name, "env": cfg.App.Env},
	})

	engine, err := supervisor.New(cfg, supervisor.Options{})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to initialize supervisor")
		return &supervisor.ExitError{Code: 1, Err: err}
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Crash.StopTimeout + shutdownGrace
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)

	result := make(chan error, 1)
	tree.Add(supervisor.LayerEngine, services.NewEngineService(engine, func(err error) {
		result <- err
		cancel()
	}))

	if cfg.Control.Enabled {
		addControlAPI(tree, cfg, engine)
	}

	stopSignals := handleSignals(ctx, engine, cancel)
	defer stopSignals()

	logging.Info().Str("version", version).Msg("Starting supervisor tree")
	if err := tree.Run(ctx); err != nil {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	select {
	case err := <-result:
		return err
	default:
		// The tree stopped before the engine ran.
		return &supervisor.ExitError{Code: 1, Err: errors.New("engine did not run")}
	}
}

func addControlAPI(tree *supervisor.Tree, cfg *config.Config, engine *supervisor.Engine) {
	hub := websocket.NewHub()
	hub.AllowOrigins(cfg.Control.CORSOrigins...)
	engine.Bus().Attach("live-tail", hub)
	tree.Add(supervisor.LayerMessaging, services.NewTailHubService(hub))

	router := api.NewRouter(api.NewHandler(engine, hub), api.RouterOptions{
		CommandsPerMinute: cfg.Control.CommandsPerMinute,
		CORSOrigins:       cfg.Control.CORSOrigins,
	})
	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, cfg.Control.Address, 5*time.Second))
	logging.Info().Str("addr", cfg.Control.Address).Msg("Control API enabled")
}

// handleSignals maps SIGINT and SIGTERM to a kill and SIGHUP to a manual
// restart. A stop signal that arrives after the engine has started exiting
// cancels ctx.
func handleSignals(ctx context.Context, engine *supervisor.Engine, cancel context.CancelFunc) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	done := make(chan struct{})
	go func() {
		defer close(done)
		stopping := false
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigCh:
				logging.Info().Str("signal", sig.String()).Msg("Received signal")
				if sig == syscall.SIGHUP {
					if err := engine.Restart(ctx); err != nil && !errors.Is(err, context.Canceled) {
						logging.Warn().Err(err).Msg("Restart request rejected")
					}
					continue
				}
				if stopping {
					cancel()
					return
				}
				stopping = true
				if err := engine.Kill(ctx); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		cancel()
		<-done
	}
}
