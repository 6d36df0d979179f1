// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/trawler/internal/config"
	"github.com/tomtom215/trawler/internal/event"
	"github.com/tomtom215/trawler/internal/logging"
	"github.com/tomtom215/trawler/internal/metrics"
)

// File sink defaults.
const (
	DefaultLogName     = "crash"
	DefaultMaxBackLogs = 6
)

const writeErrorFollowup = "\n_Until the app is restarted no further write errors will be reported._"

// FileOptions configures a File sink.
type FileOptions struct {
	// Location is the configured base directory. It is registered as an
	// ignored source path.
	Location string

	// Dir holds the log files, normally Location/<app name>.
	Dir string

	// LogName is the file stem; the active file is LogName + ".log".
	LogName string

	Rotate       bool
	MaxBackLogs  int
	CrashOnError bool
}

// File appends event lines to a daily-rotated log file.
type File struct {
	opts     FileOptions
	filename string
	host     Host
	log      zerolog.Logger

	now       func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer

	pipe *event.Pipe

	// rotateMu serialises rotation checks and swaps, so concurrent checks
	// rotate at most once per UTC day.
	rotateMu sync.Mutex

	// mu guards the active file handle. Rotation holds it while the handle
	// is swapped; Consume holds it for each write.
	mu     sync.Mutex
	file   *os.File
	timer  *time.Timer
	closed bool

	writeErrNotified atomic.Bool
}

// NewFile creates a file sink. Values left zero in opts take the defaults.
func NewFile(opts FileOptions, host Host, now func() time.Time) *File {
	if opts.LogName == "" {
		opts.LogName = DefaultLogName
	}
	if opts.MaxBackLogs <= 0 {
		opts.MaxBackLogs = DefaultMaxBackLogs
	}
	if host == nil {
		host = NopHost{}
	}
	if now == nil {
		now = time.Now
	}
	filename := strings.ToLower(opts.LogName) + ".log"
	return &File{
		opts:      opts,
		filename:  filename,
		host:      host,
		log:       logging.WithComponent("sink").With().Str("file", filename).Logger(),
		now:       now,
		afterFunc: time.AfterFunc,
	}
}

func newFileFromConfig(cfg config.SinkConfig, deps Deps) (Sink, error) {
	if strings.TrimSpace(cfg.Location) == "" {
		return nil, errors.New("file sink: location is required")
	}
	location := cfg.Location
	if !filepath.IsAbs(location) {
		base := deps.WorkDir
		if base == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("file sink: %w", err)
			}
			base = wd
		}
		location = filepath.Join(base, location)
	}

	return NewFile(FileOptions{
		Location:     location,
		Dir:          filepath.Join(location, deps.AppName),
		LogName:      cfg.LogName,
		Rotate:       boolOr(cfg.RotateLogs, true),
		MaxBackLogs:  cfg.MaxBackLogs,
		CrashOnError: boolOr(cfg.CrashOnError, true),
	}, deps.Host, deps.Now), nil
}

// Name implements Sink.
func (s *File) Name() string { return "file:" + s.Path() }

// Path returns the active log file path.
func (s *File) Path() string { return filepath.Join(s.opts.Dir, s.filename) }

// Dir returns the log directory.
func (s *File) Dir() string { return s.opts.Dir }

// Init creates the log directory, rotates a stale log and opens the active
// file. With CrashOnError unset, filesystem failures are reported and the
// sink continues in a degraded state.
func (s *File) Init(_ context.Context, pipe *event.Pipe) error {
	s.pipe = pipe

	if s.opts.Location != "" {
		if err := s.host.Ignore(s.opts.Location); err != nil {
			s.log.Warn().Err(err).Str("location", s.opts.Location).Msg("failed to ignore log location")
		}
	}

	s.log.Debug().
		Str("dir", s.opts.Dir).
		Bool("rotate", s.opts.Rotate).
		Int("max_back_logs", s.opts.MaxBackLogs).
		Msg("initialising file sink")

	if err := os.MkdirAll(s.opts.Dir, 0o755); err != nil {
		return s.degrade("create the log directory", err)
	}

	rotated, err := s.CheckAndRotate()
	s.scheduleNext()
	if err != nil {
		if ferr := s.degrade("rotate the log files", err); ferr != nil {
			return ferr
		}
	}
	if rotated {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.openLocked(); err != nil {
		return s.degrade("open the log file", err)
	}
	return nil
}

// Consume implements event.Consumer. A failed write reopens the file and
// retries once. Only the first failure per child run is notified.
func (s *File) Consume(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	if _, err := s.file.Write(line); err != nil {
		metrics.SinkWriteErrors.WithLabelValues(s.Name()).Inc()
		s.host.Report(event.KindError, "Trawler is unable to write to the log file.", err)
		if s.writeErrNotified.CompareAndSwap(false, true) {
			s.host.NotifyError(
				fmt.Sprintf("Trawler is unable to write to the log file (%s).%s", errCode(err), writeErrorFollowup), err)
		}

		_ = s.file.Close()
		s.file = nil
		if oerr := s.openLocked(); oerr != nil {
			return fmt.Errorf("reopen %s: %w", s.Path(), oerr)
		}
		_, err = s.file.Write(line)
		return err
	}
	return nil
}

// OnLifecycle re-arms the write error notification for the new child run.
func (s *File) OnLifecycle(event.LifecycleEvent) {
	s.writeErrNotified.Store(false)
}

// Close stops the rotation schedule and closes the active file.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *File) openLocked() error {
	if s.file != nil {
		return nil
	}
	f, err := os.OpenFile(s.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	s.file = f
	return nil
}

// degrade returns a fatal error when CrashOnError is set; otherwise it
// reports and notifies, then returns nil.
func (s *File) degrade(action string, err error) error {
	if s.opts.CrashOnError {
		return fmt.Errorf("file sink: unable to %s: %w", action, err)
	}
	s.log.Error().Err(err).Msgf("unable to %s", action)
	s.host.Report(event.KindError, fmt.Sprintf("Trawler is unable to %s.", action), err)
	s.host.NotifyError(fmt.Sprintf("Trawler is unable to %s (%s).", action, errCode(err)), err)
	return nil
}

// scheduleNext arms the next day-boundary check.
func (s *File) scheduleNext() {
	if !s.opts.Rotate {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	now := s.now()
	s.timer = s.afterFunc(NextCheck(now).Sub(now), s.scheduledCheck)
}

func (s *File) scheduledCheck() {
	_, err := s.CheckAndRotate()
	if err != nil {
		if ferr := s.degrade("rotate the log files", err); ferr != nil {
			s.host.Report(event.KindError, "Trawler is unable to rotate the log files.", err)
			s.host.Fatal(ferr)
		}
	}
	s.scheduleNext()
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// errCode returns the innermost error text, e.g. "permission denied".
func errCode(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
