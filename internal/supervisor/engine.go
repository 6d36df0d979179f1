// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/trawler/internal/config"
	"github.com/tomtom215/trawler/internal/event"
	"github.com/tomtom215/trawler/internal/logging"
	"github.com/tomtom215/trawler/internal/metrics"
	"github.com/tomtom215/trawler/internal/notify"
	"github.com/tomtom215/trawler/internal/policy"
	"github.com/tomtom215/trawler/internal/sink"
	"github.com/tomtom215/trawler/internal/watch"
)

// NoSinksWarning is written when no sink is active in the environment.
const NoSinksWarning = "No sinks configured: the app's log output will be lost."

const reportBuffer = 256

// Options supplies collaborators that are normally built from configuration.
type Options struct {
	// Dispatcher replaces the notifiers declared in configuration.
	Dispatcher *notify.Dispatcher

	// Sinks are attached after the configured sinks.
	Sinks []sink.Sink

	// Stdout and Stderr receive console passthrough. Nil means the
	// supervisor's own streams.
	Stdout io.Writer
	Stderr io.Writer

	Hostname string
	Now      func() time.Time
}

type report struct {
	kind    event.Kind
	message string
	err     error
}

type commandKind int

const (
	cmdRestart commandKind = iota
	cmdKill
)

type command struct {
	kind  commandKind
	reply chan error
}

// Engine supervises one child process. All child, policy and restart state
// is owned by the goroutine running Run; other goroutines interact through
// commands, the Host methods and Status.
type Engine struct {
	cfg *config.Config
	now func() time.Time
	log zerolog.Logger

	bus        *event.Bus
	sinks      []sink.Sink
	pipes      []*event.Pipe
	hasSinks   bool
	dispatcher *notify.Dispatcher
	watcher    *watch.Watcher

	stamp    event.Stamp
	hostname string
	machine  *policy.Machine
	stderr   *StderrBuffer

	child     *childHandle
	starts    int
	afterStop func() (bool, error)
	exiting   bool

	restartTimer *time.Timer
	restartC     <-chan time.Time

	cmds    chan command
	reports chan report
	faults  chan error
	done    chan struct{}
	running atomic.Bool
	status  atomic.Pointer[Status]

	notifyCtx    context.Context
	notifyCancel context.CancelFunc
}

// New builds an engine and every sink, notifier and watcher its
// configuration declares. Unknown sink or notifier types are errors.
func New(cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("supervisor: config is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	hostname := opts.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	e := &Engine{
		cfg:      cfg,
		now:      now,
		log:      logging.WithComponent("supervisor").With().Str("app", cfg.App.Name).Logger(),
		bus:      event.NewBus(),
		hostname: hostname,
		machine: policy.NewMachine(policy.Config{
			AutoRestart:         cfg.Crash.AutoRestart,
			MaxRestarts:         cfg.Crash.MaxRestarts,
			WaitForSourceChange: cfg.Crash.WaitForSourceChange,
		}),
		stderr:  NewStderrBuffer(DefaultStderrWindow),
		cmds:    make(chan command),
		reports: make(chan report, reportBuffer),
		faults:  make(chan error, 8),
		done:    make(chan struct{}),
	}
	e.notifyCtx, e.notifyCancel = context.WithCancel(context.Background())
	e.stamp = event.Stamp{
		Name:            cfg.App.Name,
		Hostname:        hostname,
		PID:             os.Getpid(),
		SupervisorStart: now(),
	}

	if cfg.Source.AutoRestart || cfg.Crash.WaitForSourceChange {
		w, err := newWatcher(cfg)
		if err != nil {
			return nil, err
		}
		e.watcher = w
	}

	e.dispatcher = opts.Dispatcher
	if e.dispatcher == nil {
		d, err := notify.FromConfig(cfg.FilterNotifiers(cfg.App.Env))
		if err != nil {
			return nil, err
		}
		e.dispatcher = d
	}

	for i, sc := range cfg.FilterSinks(cfg.App.Env) {
		s, err := sink.New(sc, sink.Deps{AppName: cfg.App.Name, Host: e, Now: now})
		if err != nil {
			return nil, fmt.Errorf("sinks[%d]: %w", i, err)
		}
		e.sinks = append(e.sinks, s)
	}
	e.sinks = append(e.sinks, opts.Sinks...)
	e.hasSinks = len(e.sinks) > 0

	if cfg.Console.Stdout || cfg.Console.Stderr {
		var stdout, stderr io.Writer
		if cfg.Console.Stdout {
			stdout = writerOr(opts.Stdout, os.Stdout)
		}
		if cfg.Console.Stderr {
			stderr = writerOr(opts.Stderr, os.Stderr)
		}
		e.sinks = append(e.sinks, sink.NewConsole(stdout, stderr))
	}

	e.publishStatus()
	return e, nil
}

func newWatcher(cfg *config.Config) (*watch.Watcher, error) {
	root := cfg.App.Dir
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("supervisor: %w", err)
		}
		root = wd
	}
	ignore, err := watch.NewIgnoreSet(root, cfg.Source.Roots...)
	if err != nil {
		return nil, err
	}
	if err := ignore.AddAll(cfg.Source.Ignore); err != nil {
		return nil, err
	}
	return watch.New(watch.Options{
		Roots:              append([]string{root}, cfg.Source.Roots...),
		Debounce:           cfg.Source.Debounce,
		UsePolling:         cfg.Source.UsePolling,
		PollInterval:       cfg.Source.PollInterval,
		BinaryPollInterval: cfg.Source.BinaryPollInterval,
		Ignore:             ignore,
	})
}

// Bus returns the event bus, so other consumers such as the live tail can
// attach before Run.
func (e *Engine) Bus() *event.Bus { return e.bus }

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Run supervises the child until the operator stops it, ctx is cancelled,
// or the crash policy gives up. It returns nil for an operator stop and an
// *ExitError otherwise.
func (e *Engine) Run(ctx context.Context) (err error) {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("supervisor: engine already started")
	}
	defer close(e.done)

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	defer e.cleanup()
	defer func() {
		if r := recover(); r != nil {
			err = e.internalFault(fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
		}
	}()

	for _, s := range e.sinks {
		pipe := e.bus.Attach(s.Name(), s)
		e.pipes = append(e.pipes, pipe)
		if ierr := s.Init(runCtx, pipe); ierr != nil {
			e.log.Error().Err(ierr).Str("sink", s.Name()).Msg("failed to initialise sink")
			return &ExitError{Code: 1, Err: ierr}
		}
	}
	if !e.hasSinks {
		e.emit(event.KindWarning, NoSinksWarning, nil, nil)
	}

	if e.watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if werr := e.watcher.Run(runCtx); werr != nil && !errors.Is(werr, context.Canceled) {
				e.Fatal(werr)
			}
		}()
	}

	if stop, serr := e.start(policy.ReasonBoot); stop {
		return serr
	}
	return e.loop(runCtx)
}

func (e *Engine) loop(ctx context.Context) error {
	ctxDone := ctx.Done()
	for {
		var lines <-chan outputLine
		var exited <-chan exitInfo
		var stopC <-chan time.Time
		if e.child != nil {
			lines = e.child.lines
			exited = e.child.done
			if e.child.stopTimer != nil {
				stopC = e.child.stopTimer.C
			}
		}
		var changes <-chan string
		if e.watcher != nil {
			changes = e.watcher.Changes()
		}

		var stop bool
		var err error

		select {
		case <-ctxDone:
			ctxDone = nil
			if e.exiting && e.child != nil {
				// Already stopping: skip the rest of the stop timeout.
				if kerr := e.child.kill(); kerr != nil {
					e.log.Error().Err(kerr).Msg("failed to kill child")
				}
				continue
			}
			stop, err = e.kill("Supervisor is shutting down.")

		case l, ok := <-lines:
			if !ok {
				e.child.lines = nil
				continue
			}
			e.onOutput(l)

		case info := <-exited:
			stop, err = e.onExit(info)

		case <-stopC:
			e.child.stopTimer = nil
			e.log.Warn().Int("pid", e.child.pid).Dur("timeout", e.cfg.Crash.StopTimeout).Msg("child did not exit in time, killing")
			if kerr := e.child.kill(); kerr != nil {
				e.log.Error().Err(kerr).Msg("failed to kill child")
			}

		case path := <-changes:
			stop, err = e.onSourceChange(path)

		case cmd := <-e.cmds:
			stop, err = e.onCommand(cmd)

		case r := <-e.reports:
			e.emit(r.kind, r.message, r.err, nil)

		case ferr := <-e.faults:
			return e.fatal(ferr)

		case <-e.restartC:
			e.restartTimer, e.restartC = nil, nil
			stop, err = e.start(policy.ReasonCrash)
		}

		if stop {
			return err
		}
	}
}

func (e *Engine) onOutput(l outputLine) {
	if l.stream == event.EntryAppError {
		e.stderr.Add(l.at, l.text)
	}
	e.publish(e.stamp.New(l.at, l.stream, l.text, nil))
}

// start spawns a child for reason. A spawn failure is fatal.
func (e *Engine) start(reason policy.Reason) (bool, error) {
	e.stderr.Reset()
	e.starts++

	app := e.cfg.App
	var msg string
	switch reason {
	case policy.ReasonBoot:
		msg = fmt.Sprintf("Starting app %q v%s...", app.Name, app.Version)
	case policy.ReasonCrash:
		msg = fmt.Sprintf("Restarting app (%d starts) %q v%s...", e.starts, app.Name, app.Version)
	default:
		msg = fmt.Sprintf("Restarting app %q v%s...", app.Name, app.Version)
	}
	e.emit(event.KindImportant, msg, nil, map[string]any{"reason": string(reason), "starts": e.starts})

	args := append([]string{}, app.Args...)
	if app.EnvOverridden {
		args = append(args, "--env", app.Env)
	}
	child, err := spawn(spawnOptions{
		command: app.Command,
		args:    args,
		dir:     app.Dir,
		env:     childEnv(app.Environment),
		now:     e.now,
	})
	if err != nil {
		return true, e.fatal(fmt.Errorf("start %s: %w", app.Command, err))
	}

	e.child = child
	e.stamp.AppStart = child.startedAt
	e.machine.Started()
	metrics.RecordChildStart(string(reason))
	e.publishStatus()
	e.log.Info().Int("pid", child.pid).Str("reason", string(reason)).Int("starts", e.starts).Msg("child started")

	lc := event.LifecycleEvent{
		Type:       reason.Lifecycle(),
		Time:       child.startedAt,
		PID:        child.pid,
		Starts:     e.starts,
		CrashCount: e.machine.CrashCount(),
	}
	for _, s := range e.sinks {
		s.OnLifecycle(lc)
	}
	if e.dispatcher.Len() > 0 {
		e.dispatcher.AsyncLifecycle(e.notifyCtx, e.notification(notify.LifecycleType(lc.Type)))
	}
	return false, nil
}

// stopChild interrupts the running child and runs then once it has exited.
// then runs immediately when no child is running.
func (e *Engine) stopChild(then func() (bool, error)) (bool, error) {
	if e.child == nil {
		return then()
	}
	e.afterStop = then
	if e.child.intentional {
		return false, nil
	}
	e.child.intentional = true
	if err := e.child.interrupt(); err != nil {
		e.log.Warn().Err(err).Msg("failed to interrupt child")
	}
	e.child.stopTimer = time.NewTimer(e.cfg.Crash.StopTimeout)
	return false, nil
}

func (e *Engine) restart(reason policy.Reason) (bool, error) {
	e.cancelRestartTimer()
	e.machine.Restarting(reason)
	e.publishStatus()
	return e.stopChild(func() (bool, error) { return e.start(reason) })
}

func (e *Engine) kill(message string) (bool, error) {
	e.exiting = true
	e.cancelRestartTimer()
	e.machine.Quitting()
	e.publishStatus()
	e.emit(event.KindImportant, message, nil, nil)
	return e.stopChild(func() (bool, error) { return true, nil })
}

func (e *Engine) onExit(info exitInfo) (bool, error) {
	child := e.child
	if child.lines != nil {
		for l := range child.lines {
			e.onOutput(l)
		}
	}
	if child.stopTimer != nil {
		child.stopTimer.Stop()
	}
	e.child = nil

	if child.intentional {
		metrics.RecordChildExit(false, e.machine.CrashCount())
		e.emit(event.KindMessage, fmt.Sprintf("App exited (%s).", info), nil, map[string]any{"exitCode": info.code})
		e.publishStatus()
		then := e.afterStop
		e.afterStop = nil
		if then != nil {
			return then()
		}
		return false, nil
	}
	return e.onCrash(info, child)
}

func (e *Engine) onCrash(info exitInfo, child *childHandle) (bool, error) {
	d := e.machine.Crash()
	metrics.RecordChildExit(true, d.CrashCount)
	e.publishStatus()

	excerpt := e.stderr.String()
	e.emit(event.KindError, fmt.Sprintf("App %q crashed %d time(s)!", e.cfg.App.Name, d.CrashCount), info.err, map[string]any{
		"exitCode":   info.code,
		"signal":     info.signal,
		"crashCount": d.CrashCount,
		"status":     d.Status(e.cfg.Crash.MaxRestarts),
		"stderr":     excerpt,
	})

	n := e.notification(notify.Type(d.Classification))
	n.Restarts = d.CrashCount
	n.AppStartedAt = child.startedAt
	n.Stderr = excerpt

	switch d.Action {
	case policy.ActionRestart:
		e.dispatcher.Async(e.notifyCtx, n)
		if delay := e.cfg.Crash.RestartDelay; delay > 0 {
			e.emit(event.KindMessage, fmt.Sprintf("Restarting in %s...", delay), nil, nil)
			e.restartTimer = time.NewTimer(delay)
			e.restartC = e.restartTimer.C
			return false, nil
		}
		return e.start(policy.ReasonCrash)

	case policy.ActionWait:
		e.dispatcher.Async(e.notifyCtx, n)
		e.emit(event.KindWarning, "Waiting for a source change before restarting...", nil, nil)
		return false, nil

	default:
		e.emit(event.KindError, d.QuitMessage, nil, nil)
		return true, e.quit(n, errors.New(d.QuitMessage))
	}
}

// quit waits (bounded) for n to be delivered, then pauses so sinks can
// flush before the process exits.
func (e *Engine) quit(n *notify.Notification, cause error) error {
	e.machine.Quitting()
	e.publishStatus()
	e.notifyBlocking(n)
	if d := e.cfg.Crash.QuitDelay; d > 0 {
		time.Sleep(d)
	}
	return &ExitError{Code: 1, Err: cause}
}

func (e *Engine) onSourceChange(path string) (bool, error) {
	if e.exiting || !e.watcher.IsReady() {
		return false, nil
	}
	rel := path
	if r, err := filepath.Rel(e.watcher.Ignore().Root(), path); err == nil {
		rel = r
	}

	switch {
	case e.child != nil && !e.child.intentional && e.cfg.Source.AutoRestart:
		e.emit(event.KindMessage, fmt.Sprintf("Source change detected (%s).", rel), nil, map[string]any{"path": path})
		return e.restart(policy.ReasonSourceChange)

	case e.child == nil && e.machine.State() == policy.StateWaitingForSourceChange:
		e.emit(event.KindMessage, fmt.Sprintf("Source change detected (%s).", rel), nil, map[string]any{"path": path})
		e.machine.Restarting(policy.ReasonSourceChange)
		return e.start(policy.ReasonSourceChange)
	}

	e.log.Debug().Str("path", path).Str("state", string(e.machine.State())).Msg("source change ignored")
	return false, nil
}

func (e *Engine) onCommand(cmd command) (bool, error) {
	if e.exiting {
		cmd.reply <- ErrStopped
		return false, nil
	}

	switch cmd.kind {
	case cmdRestart:
		cmd.reply <- nil
		e.emit(event.KindMessage, "Manual restart requested.", nil, nil)
		if e.child == nil {
			e.cancelRestartTimer()
			e.machine.Restarting(policy.ReasonManual)
			return e.start(policy.ReasonManual)
		}
		return e.restart(policy.ReasonManual)

	case cmdKill:
		cmd.reply <- nil
		return e.kill("Killing app...")
	}
	cmd.reply <- fmt.Errorf("supervisor: unknown command %d", cmd.kind)
	return false, nil
}

func (e *Engine) cancelRestartTimer() {
	if e.restartTimer != nil {
		e.restartTimer.Stop()
		e.restartTimer, e.restartC = nil, nil
	}
}

// fatal reports err, notifies with a bounded wait and returns exit code 1.
// The child is killed by cleanup.
func (e *Engine) fatal(err error) error {
	e.machine.Quitting()
	e.publishStatus()
	e.emit(event.KindError, "Trawler has encountered a fatal error.", err, nil)

	n := e.notification(notify.TypeTrawlerError)
	n.Message = fmt.Sprintf("Trawler has encountered a fatal error and will exit (%v).", err)
	n.Err = err
	e.notifyBlocking(n)
	return &ExitError{Code: 1, Err: err}
}

// internalFault handles a panic in the engine. State may be inconsistent,
// so nothing but logging and a bounded notification is attempted.
func (e *Engine) internalFault(err error) error {
	e.log.Error().Err(err).Msg("supervisor crashed")

	n := &notify.Notification{
		Type:        notify.TypeTrawlerCrash,
		App:         e.cfg.App.Name,
		Env:         e.cfg.App.Env,
		Version:     e.cfg.App.Version,
		Hostname:    e.hostname,
		Time:        e.now(),
		MaxRestarts: e.cfg.Crash.MaxRestarts,
		Err:         err,
	}
	e.notifyBlocking(n)
	return &ExitError{Code: 1, Err: err}
}

func (e *Engine) notifyBlocking(n *notify.Notification) {
	if e.dispatcher.Len() == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(e.notifyCtx, e.cfg.Crash.NotifyTimeout)
	defer cancel()
	if err := e.dispatcher.DispatchUrgent(ctx, n); err != nil {
		e.log.Warn().Err(err).Str("type", string(n.Type)).Msg("notification dispatch failed")
	}
}

// cleanup kills a child left running by a fatal exit, waits for pending
// notifications and closes every sink.
func (e *Engine) cleanup() {
	if c := e.child; c != nil {
		_ = c.kill()
		timer := time.NewTimer(e.cfg.Crash.StopTimeout)
		lines := c.lines
	wait:
		for {
			select {
			case l, ok := <-lines:
				if !ok {
					lines = nil
					continue
				}
				e.onOutput(l)
			case <-c.done:
				break wait
			case <-timer.C:
				e.log.Error().Int("pid", c.pid).Msg("child did not exit after kill")
				break wait
			}
		}
		timer.Stop()
		e.child = nil
	}
	e.cancelRestartTimer()

	for {
		select {
		case r := <-e.reports:
			e.emit(r.kind, r.message, r.err, nil)
			continue
		default:
		}
		break
	}

	waited := make(chan struct{})
	go func() {
		e.dispatcher.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(e.cfg.Crash.NotifyTimeout):
		e.log.Warn().Msg("abandoning pending notifications")
	}
	e.notifyCancel()
	<-waited

	for i, s := range e.sinks {
		if i < len(e.pipes) {
			e.bus.Detach(e.pipes[i])
		}
		if err := s.Close(); err != nil {
			e.log.Warn().Err(err).Str("sink", s.Name()).Msg("failed to close sink")
		}
	}
	metrics.ChildUp.Set(0)
	e.publishStatus()
}

// emit publishes a supervisor message and mirrors it to the log.
func (e *Engine) emit(kind event.Kind, message string, err error, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["kind"] = string(kind)
	ev := e.stamp.New(e.now(), event.EntryTrawler, message, data)
	if err != nil {
		ev.Error = err.Error()
	}

	var le *zerolog.Event
	switch kind {
	case event.KindError:
		le = e.log.Error().Err(err)
	case event.KindWarning:
		le = e.log.Warn().Err(err)
	default:
		le = e.log.Info()
	}
	le.Str("kind", string(kind)).Msg(message)

	e.publish(ev)
}

func (e *Engine) publish(ev *event.LogEvent) {
	if err := e.bus.Publish(ev); err != nil {
		e.log.Warn().Err(err).Msg("failed to deliver event to sink")
	}
}

func (e *Engine) notification(t notify.Type) *notify.Notification {
	s := e.status.Load()
	n := &notify.Notification{
		Type:        t,
		App:         e.cfg.App.Name,
		Env:         e.cfg.App.Env,
		Version:     e.cfg.App.Version,
		Hostname:    e.hostname,
		Time:        e.now(),
		MaxRestarts: e.cfg.Crash.MaxRestarts,
	}
	if s != nil {
		n.Restarts = s.CrashCount
		if s.StartedAt != nil {
			n.AppStartedAt = *s.StartedAt
		}
	}
	return n
}

func (e *Engine) publishStatus() {
	s := &Status{
		App:             e.cfg.App.Name,
		Version:         e.cfg.App.Version,
		Env:             e.cfg.App.Env,
		State:           e.machine.State(),
		Starts:          e.starts,
		CrashCount:      e.machine.CrashCount(),
		SupervisorStart: e.stamp.SupervisorStart,
	}
	if e.child != nil {
		s.PID = e.child.pid
		started := e.child.startedAt
		s.StartedAt = &started
	} else if !e.stamp.AppStart.IsZero() {
		started := e.stamp.AppStart
		s.StartedAt = &started
	}
	e.status.Store(s)
}

func childEnv(extra map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

func writerOr(w, def io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return def
}
