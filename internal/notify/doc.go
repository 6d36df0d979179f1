// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

// Package notify delivers supervisor notifications to external services.
//
// Providers implement Notifier and are selected by the type tag of their
// configuration block:
//   - slack: Slack incoming webhook
//   - email: SMTP with optional STARTTLS and PLAIN auth
//   - webhook: generic JSON POST
//
// Every provider formats its message body with Render, so all services see
// the same text. The Dispatcher fans a notification out to every provider
// concurrently. Each provider sits behind its own rate limiter and circuit
// breaker; one failing provider never delays or blocks the others.
package notify
