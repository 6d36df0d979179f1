// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/trawler/internal/logging"
	"github.com/tomtom215/trawler/internal/metrics"
)

// Options configures a Watcher.
type Options struct {
	// Roots are the directories to watch. The first root anchors relative
	// ignore patterns when Ignore is nil.
	Roots []string

	Debounce           time.Duration
	UsePolling         bool
	PollInterval       time.Duration
	BinaryPollInterval time.Duration

	Ignore *IgnoreSet
}

// backend produces raw change events for a set of roots.
type backend interface {
	// run scans the roots, calls ready once the scan is complete, then
	// calls emit for every change until ctx is done.
	run(ctx context.Context, roots []string, ready func(), emit func(path string)) error
}

// Watcher reports debounced source changes.
type Watcher struct {
	roots    []string
	ignore   *IgnoreSet
	backend  backend
	debounce *Debouncer
	log      zerolog.Logger

	ready     chan struct{}
	readyOnce sync.Once
	isReady   atomic.Bool
	changes   chan string
}

// New validates opts and builds a watcher. Call Run to start it.
func New(opts Options) (*Watcher, error) {
	if len(opts.Roots) == 0 {
		return nil, errors.New("watch: at least one root is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.BinaryPollInterval <= 0 {
		opts.BinaryPollInterval = 300 * time.Millisecond
	}

	roots := make([]string, len(opts.Roots))
	for i, r := range opts.Roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve %s: %w", r, err)
		}
		roots[i] = abs
	}

	ignore := opts.Ignore
	if ignore == nil {
		var err error
		if ignore, err = NewIgnoreSet(roots[0], roots[1:]...); err != nil {
			return nil, err
		}
	}

	w := &Watcher{
		roots:   roots,
		ignore:  ignore,
		log:     logging.WithComponent("watch"),
		ready:   make(chan struct{}),
		changes: make(chan string, 1),
	}
	if opts.UsePolling {
		w.backend = &poller{
			ignore:         ignore,
			interval:       opts.PollInterval,
			binaryInterval: opts.BinaryPollInterval,
		}
	} else {
		w.backend = &native{ignore: ignore, log: w.log}
	}
	w.debounce = NewDebouncer(opts.Debounce, w.signal)
	return w, nil
}

// Ready is closed once the initial scan has completed.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// IsReady reports whether the initial scan has completed.
func (w *Watcher) IsReady() bool { return w.isReady.Load() }

// Changes delivers one path per debounced burst. The channel holds at most
// one pending signal; further bursts coalesce into it.
func (w *Watcher) Changes() <-chan string { return w.changes }

// Ignore returns the ignore set, so sinks can register their own output.
func (w *Watcher) Ignore() *IgnoreSet { return w.ignore }

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.debounce.Stop()

	w.log.Debug().Strs("roots", w.roots).Msg("starting source watcher")
	err := w.backend.run(ctx, w.roots, w.markReady, w.observe)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch: %w", err)
	}
	return ctx.Err()
}

func (w *Watcher) markReady() {
	w.readyOnce.Do(func() {
		w.isReady.Store(true)
		close(w.ready)
		w.log.Debug().Msg("source watcher ready")
	})
}

func (w *Watcher) observe(path string) {
	if !w.isReady.Load() || w.ignore.Ignored(path) {
		return
	}
	w.log.Debug().Str("path", path).Msg("source change detected")
	w.debounce.Trigger(path)
}

func (w *Watcher) signal(path string) {
	metrics.SourceChanges.Inc()
	select {
	case w.changes <- path:
	default:
	}
}

// String implements fmt.Stringer for suture.
func (w *Watcher) String() string { return "source-watcher" }
