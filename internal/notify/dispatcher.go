// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tomtom215/trawler/internal/config"
	"github.com/tomtom215/trawler/internal/event"
	"github.com/tomtom215/trawler/internal/logging"
	"github.com/tomtom215/trawler/internal/metrics"
)

// Dispatch defaults.
const (
	DefaultRatePerMinute    = 30
	DefaultBreakerThreshold = 5
	DefaultBreakerTimeout   = time.Minute
)

// ErrRateLimited is returned for a delivery dropped by a notifier's rate
// limiter.
var ErrRateLimited = errors.New("notification rate limit exceeded")

// Options tune a notifier's delivery.
type Options struct {
	// RatePerMinute caps deliveries; the burst equals the rate.
	RatePerMinute int

	// Timeout bounds one delivery. Zero leaves it to the notifier.
	Timeout time.Duration

	// Events lists the lifecycle types forwarded to the notifier.
	Events []event.Lifecycle

	// BreakerThreshold is the number of consecutive failures that opens
	// the circuit.
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
}

type route struct {
	notifier Notifier
	timeout  time.Duration
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[struct{}]
	events   map[event.Lifecycle]bool
}

// Dispatcher fans notifications out to every registered notifier.
type Dispatcher struct {
	routes []*route
	log    zerolog.Logger
	wg     sync.WaitGroup
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{log: logging.WithComponent("notify")}
}

// FromConfig builds a dispatcher from notifier declarations. An unknown
// type or invalid declaration is an error.
func FromConfig(cfgs []config.NotifierConfig) (*Dispatcher, error) {
	d := NewDispatcher()
	for i, cfg := range cfgs {
		n, err := New(cfg)
		if err != nil {
			return nil, fmt.Errorf("notifiers[%d]: %w", i, err)
		}
		events := make([]event.Lifecycle, 0, len(cfg.Events))
		for _, e := range cfg.Events {
			events = append(events, event.Lifecycle(e))
		}
		d.Add(n, Options{
			RatePerMinute: cfg.RatePerMinute,
			Timeout:       cfg.Timeout,
			Events:        events,
		})
	}
	return d, nil
}

// Add registers a notifier.
func (d *Dispatcher) Add(n Notifier, opts Options) {
	if opts.RatePerMinute <= 0 {
		opts.RatePerMinute = DefaultRatePerMinute
	}
	if opts.BreakerThreshold == 0 {
		opts.BreakerThreshold = DefaultBreakerThreshold
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = DefaultBreakerTimeout
	}

	events := make(map[event.Lifecycle]bool, len(opts.Events))
	for _, e := range opts.Events {
		events[e] = true
	}

	threshold := opts.BreakerThreshold
	log := d.log
	d.routes = append(d.routes, &route{
		notifier: n,
		timeout:  opts.Timeout,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), opts.RatePerMinute),
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:    n.Name(),
			Timeout: opts.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("notifier", name).Str("from", from.String()).Str("to", to.String()).
					Msg("notifier circuit breaker state changed")
			},
		}),
		events: events,
	})
}

// Len returns the number of registered notifiers.
func (d *Dispatcher) Len() int { return len(d.routes) }

// Names returns the registered notifier names in order.
func (d *Dispatcher) Names() []string {
	names := make([]string, len(d.routes))
	for i, r := range d.routes {
		names[i] = r.notifier.Name()
	}
	return names
}

// Dispatch delivers n to every notifier concurrently and waits for all of
// them. Failures are joined; a failing notifier never stops the others.
func (d *Dispatcher) Dispatch(ctx context.Context, n *Notification) error {
	return d.fanOut(ctx, n, d.routes, false)
}

// DispatchUrgent is Dispatch without rate limiting, for the last
// notification before the process exits. Circuit breakers and timeouts
// still apply.
func (d *Dispatcher) DispatchUrgent(ctx context.Context, n *Notification) error {
	return d.fanOut(ctx, n, d.routes, true)
}

// DispatchLifecycle delivers a lifecycle notification to the notifiers
// subscribed to its type.
func (d *Dispatcher) DispatchLifecycle(ctx context.Context, n *Notification) error {
	l, ok := n.Type.Lifecycle()
	if !ok {
		return fmt.Errorf("notify: %q is not a lifecycle type", n.Type)
	}
	var routes []*route
	for _, r := range d.routes {
		if r.events[l] {
			routes = append(routes, r)
		}
	}
	return d.fanOut(ctx, n, routes, false)
}

// Async runs Dispatch in the background. The returned channel receives
// the result once.
func (d *Dispatcher) Async(ctx context.Context, n *Notification) <-chan error {
	return d.background(ctx, n, d.Dispatch)
}

// AsyncLifecycle runs DispatchLifecycle in the background.
func (d *Dispatcher) AsyncLifecycle(ctx context.Context, n *Notification) <-chan error {
	return d.background(ctx, n, d.DispatchLifecycle)
}

// Wait blocks until every background delivery has finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) background(ctx context.Context, n *Notification, send func(context.Context, *Notification) error) <-chan error {
	done := make(chan error, 1)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		done <- send(ctx, n)
	}()
	return done
}

func (d *Dispatcher) fanOut(ctx context.Context, n *Notification, routes []*route, urgent bool) error {
	if len(routes) == 0 {
		return nil
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Time.IsZero() {
		n.Time = time.Now()
	}

	// Every route is attempted; one failure never cancels the others.
	errs := make([]error, len(routes))
	var g errgroup.Group
	for i, r := range routes {
		g.Go(func() error {
			errs[i] = d.deliver(ctx, r, n, urgent)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (d *Dispatcher) deliver(ctx context.Context, r *route, n *Notification, urgent bool) error {
	name := r.notifier.Name()
	log := d.log.With().Str("notifier", name).Str("notification_id", n.ID).Str("type", string(n.Type)).Logger()

	if !urgent && !r.limiter.Allow() {
		metrics.RecordNotification(name, "throttled")
		log.Warn().Msg("notification dropped by rate limiter")
		return fmt.Errorf("%s: %w", name, ErrRateLimited)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	_, err := r.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, r.notifier.Send(ctx, n)
	})
	switch {
	case err == nil:
		metrics.RecordNotification(name, "success")
		log.Debug().Msg("notification delivered")
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordNotification(name, "circuit_open")
	default:
		metrics.RecordNotification(name, "failure")
	}
	log.Error().Err(err).Msg("notification delivery failed")
	return fmt.Errorf("%s: %w", name, err)
}
