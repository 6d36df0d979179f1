// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

// Package config loads the supervisor configuration with Koanf v2.
//
// Sources are layered, later ones winning:
//
//  1. Built-in defaults (defaultConfig)
//  2. An optional YAML file (trawler.yaml, or the path given by --config or TRAWLER_CONFIG)
//  3. TRAWLER_* environment variables (see envMappings)
//
// A minimal file:
//
//	app:
//	  name: api
//	  version: 1.4.0
//	  command: ./bin/api
//	crash:
//	  auto_restart: true
//	  max_restarts: 5
//	source:
//	  auto_restart: true
//	sinks:
//	  - type: file
//	    location: ./logs
//	notifiers:
//	  - type: slack
//	    webhook_url: https://hooks.slack.com/services/T000/B000/XXX
//	    exclude_environments: [development]
//
// Sink and notifier declarations carry optional environments and
// exclude_environments lists. FilterSinks and FilterNotifiers apply them once,
// before any sink or notifier is constructed.
package config
