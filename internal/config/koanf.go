// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched, in order, when no explicit
// config file is given. The first file found is used.
var DefaultConfigPaths = []string{
	"trawler.yaml",
	"trawler.yml",
	".trawler.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "TRAWLER_CONFIG"

// Overrides are command-line settings applied after all other layers.
type Overrides struct {
	ConfigPath string
	Env        string
	Stdout     bool
	Stderr     bool
	Debug      bool
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "unknown",
			Version: "unknown",
			Env:     "development",
		},
		Crash: CrashConfig{
			AutoRestart:   true,
			MaxRestarts:   0, // unlimited
			StopTimeout:   5 * time.Second,
			QuitDelay:     time.Second,
			NotifyTimeout: 3 * time.Second,
		},
		Source: SourceConfig{
			AutoRestart:        false,
			Debounce:           500 * time.Millisecond,
			PollInterval:       100 * time.Millisecond,
			BinaryPollInterval: 300 * time.Millisecond,
		},
		Control: ControlConfig{
			Enabled:           false,
			Address:           "127.0.0.1:7340",
			CommandsPerMinute: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from defaults, the config file, the
// environment and finally the command-line overrides, then validates it.
func Load(o Overrides) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath, err := findConfigFile(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("TRAWLER_", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.apply(o)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) apply(o Overrides) {
	if o.Env != "" {
		c.App.Env = o.Env
		c.App.EnvOverridden = true
	}
	if o.Stdout {
		c.Console.Stdout = true
	}
	if o.Stderr {
		c.Console.Stderr = true
	}
	if o.Debug {
		c.Logging.Level = "debug"
	}
}

// findConfigFile resolves the config file. An explicit path must exist;
// the default search paths are optional.
func findConfigFile(explicit string) (string, error) {
	if explicit == "" {
		explicit = os.Getenv(ConfigPathEnvVar)
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// sliceConfigPaths are parsed as comma-separated lists when they come from
// the environment.
var sliceConfigPaths = []string{
	"app.args",
	"source.ignore",
	"source.roots",
	"control.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envTransformFunc maps TRAWLER_* variables to config paths. Unmapped keys
// return "" and are skipped.
//
//	TRAWLER_APP_NAME      -> app.name
//	TRAWLER_MAX_RESTARTS  -> crash.max_restarts
//	TRAWLER_DEBOUNCE      -> source.debounce
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "TRAWLER_"))
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

var envMappings = map[string]string{
	"app_name":    "app.name",
	"app_version": "app.version",
	"app_command": "app.command",
	"app_args":    "app.args",
	"app_dir":     "app.dir",
	"env":         "app.env",

	"auto_restart":           "crash.auto_restart",
	"max_restarts":           "crash.max_restarts",
	"wait_for_source_change": "crash.wait_for_source_change",
	"restart_delay":          "crash.restart_delay",
	"stop_timeout":           "crash.stop_timeout",
	"quit_delay":             "crash.quit_delay",
	"notify_timeout":         "crash.notify_timeout",

	"source_auto_restart":  "source.auto_restart",
	"debounce":             "source.debounce",
	"use_polling":          "source.use_polling",
	"poll_interval":        "source.poll_interval",
	"binary_poll_interval": "source.binary_poll_interval",
	"ignore":               "source.ignore",
	"watch_roots":          "source.roots",

	"stdout": "console.stdout",
	"stderr": "console.stderr",

	"control_enabled":             "control.enabled",
	"control_address":             "control.address",
	"control_cors_origins":        "control.cors_origins",
	"control_commands_per_minute": "control.commands_per_minute",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}
