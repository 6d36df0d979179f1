// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package supervisor

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/tomtom215/trawler/internal/event"
)

// childWaitDelay bounds how long output copying may outlive the process,
// e.g. when a grandchild keeps the pipes open.
const childWaitDelay = 2 * time.Second

type outputLine struct {
	stream event.EntryType
	text   string
	at     time.Time
}

type exitInfo struct {
	code   int
	signal string
	err    error
	at     time.Time
}

// String describes how the child exited.
func (e exitInfo) String() string {
	if e.signal != "" {
		return "signal " + e.signal
	}
	return fmt.Sprintf("code %d", e.code)
}

// childHandle is one running child process. Its fields are owned by the
// engine goroutine; lines and done are written by the process goroutines.
type childHandle struct {
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time

	// lines is closed after the last output line; done then receives the
	// exit exactly once.
	lines chan outputLine
	done  chan exitInfo

	intentional bool
	stopTimer   *time.Timer
}

type spawnOptions struct {
	command string
	args    []string
	dir     string
	env     []string
	now     func() time.Time
}

// spawn starts the child in its own session so signals reach its whole
// process group.
func spawn(opts spawnOptions) (*childHandle, error) {
	cmd := exec.Command(opts.command, opts.args...)
	cmd.Dir = opts.dir
	cmd.Env = opts.env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.WaitDelay = childWaitDelay

	c := &childHandle{
		cmd:   cmd,
		lines: make(chan outputLine, 64),
		done:  make(chan exitInfo, 1),
	}
	stdout := &lineWriter{stream: event.EntryAppOutput, out: c.lines, now: opts.now}
	stderr := &lineWriter{stream: event.EntryAppError, out: c.lines, now: opts.now}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	c.pid = cmd.Process.Pid
	c.startedAt = opts.now()

	go func() {
		err := cmd.Wait()
		stdout.flush()
		stderr.flush()
		close(c.lines)
		c.done <- exitStatus(err, opts.now())
	}()
	return c, nil
}

func exitStatus(err error, at time.Time) exitInfo {
	info := exitInfo{at: at}
	if err == nil {
		return info
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		info.code = -1
		info.err = err
		return info
	}
	info.code = exitErr.ExitCode()
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		info.signal = ws.Signal().String()
	}
	if errors.Is(err, exec.ErrWaitDelay) {
		info.err = err
	}
	return info
}

// signal sends sig to the child's process group.
func (c *childHandle) signal(sig syscall.Signal) error {
	err := syscall.Kill(-c.pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	if err != nil {
		// Fall back to the process itself if the group is gone.
		if perr := c.cmd.Process.Signal(sig); perr != nil && !errors.Is(perr, os.ErrProcessDone) {
			return perr
		}
	}
	return nil
}

func (c *childHandle) interrupt() error { return c.signal(syscall.SIGINT) }

func (c *childHandle) kill() error { return c.signal(syscall.SIGKILL) }

// lineWriter splits process output into lines. exec runs one copying
// goroutine per stream, so Write is never called concurrently for one
// writer; mu only guards against the final flush.
type lineWriter struct {
	stream event.EntryType
	out    chan<- outputLine
	now    func() time.Time

	mu  sync.Mutex
	buf []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(w.buf[:i], []byte{'\r'})
		w.out <- outputLine{stream: w.stream, text: string(line), at: w.now()}
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// flush emits a trailing line without a newline.
func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.out <- outputLine{stream: w.stream, text: string(w.buf), at: w.now()}
		w.buf = nil
	}
}
