// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package main

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/tomtom215/trawler/internal/config"
	"github.com/tomtom215/trawler/internal/logging"
	"github.com/tomtom215/trawler/internal/supervisor"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type flags struct {
	config string
	env    string
	stdout bool
	stderr bool
	stdall bool
	debug  bool
}

func (f flags) overrides() config.Overrides {
	return config.Overrides{
		ConfigPath: f.config,
		Env:        f.env,
		Stdout:     f.stdout || f.stdall,
		Stderr:     f.stderr || f.stdall,
		Debug:      f.debug,
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		code := supervisor.ExitCode(err)
		var exitErr *supervisor.ExitError
		if !errors.As(err, &exitErr) {
			logging.Error().Err(err).Msg("Trawler failed")
		}
		os.Exit(code)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:           "trawler",
		Short:         "Supervise a single worker process",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f.overrides())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.config, "config", "c", "", "config file (default: trawler.yaml in the working directory)")
	pf.StringVarP(&f.env, "env", "e", "", "environment override, also passed to the app as --env <env>")
	pf.BoolVar(&f.stdout, "stdout", false, "echo the app's stdout")
	pf.BoolVar(&f.stderr, "stderr", false, "echo the app's stderr")
	pf.BoolVar(&f.stdall, "stdall", false, "echo the app's stdout and stderr")
	pf.BoolVarP(&f.debug, "debug", "d", false, "debug logging")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Start the supervisor (same as running trawler without a command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f.overrides())
		},
	})
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "trawler: %s\n", version)

			info, ok := debug.ReadBuildInfo()
			if !ok {
				return
			}
			fmt.Fprintf(out, "go:      %s\n", info.GoVersion)
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					fmt.Fprintf(out, "commit:  %s\n", s.Value)
				case "vcs.time":
					fmt.Fprintf(out, "date:    %s\n", s.Value)
				}
			}
		},
	}
}
