// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package supervisor

import (
	"github.com/tomtom215/trawler/internal/event"
	"github.com/tomtom215/trawler/internal/notify"
	"github.com/tomtom215/trawler/internal/sink"
)

var _ sink.Host = (*Engine)(nil)

// Sinks call the Host methods while holding their pipe lock, often from the
// engine goroutine itself, so none of them may block.

// Report queues a supervisor message for the event loop.
func (e *Engine) Report(kind event.Kind, message string, err error) {
	select {
	case e.reports <- report{kind: kind, message: message, err: err}:
	default:
		e.log.Warn().Err(err).Str("message", message).Msg("report queue full, dropping message")
	}
}

// NotifyError sends a trawler-error notification in the background.
func (e *Engine) NotifyError(message string, err error) {
	if e.dispatcher.Len() == 0 {
		return
	}
	n := e.notification(notify.TypeTrawlerError)
	n.Message = message
	n.Err = err
	e.dispatcher.Async(e.notifyCtx, n)
}

// Fatal makes Run exit with code 1.
func (e *Engine) Fatal(err error) {
	select {
	case e.faults <- err:
	default:
	}
}

// Ignore excludes path from source watching.
func (e *Engine) Ignore(path string) error {
	if e.watcher == nil {
		return nil
	}
	return e.watcher.Ignore().Add(path)
}
