// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/trawler/internal/event"
	"github.com/tomtom215/trawler/internal/metrics"
)

// ErrUnparseableLog is returned when the first line of the active log is
// not a valid event.
var ErrUnparseableLog = errors.New("unable to parse JSON log file")

// errSinkClosed stops a rotation that raced Close.
var errSinkClosed = errors.New("file sink closed")

// NextCheck returns the instant of the rotation check following now: one
// millisecond after the next UTC midnight.
func NextCheck(now time.Time) time.Time {
	u := now.UTC()
	midnight := time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)
	return midnight.Add(time.Millisecond)
}

// SameUTCDay reports whether a and b fall on the same UTC calendar day.
func SameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// CheckAndRotate rotates the active log if its first entry was written on
// an earlier UTC day than now. It reports whether a rotation happened.
func (s *File) CheckAndRotate() (bool, error) {
	if !s.opts.Rotate {
		return false, nil
	}
	s.rotateMu.Lock()
	defer s.rotateMu.Unlock()

	needed, err := s.rotationRequired(s.now())
	if err != nil {
		metrics.RecordRotation(false, err)
		return false, err
	}
	if !needed {
		metrics.RecordRotation(false, nil)
		return false, nil
	}
	return s.rotate()
}

// Rotate moves the active log into the backlog regardless of its age.
func (s *File) Rotate() (bool, error) {
	s.rotateMu.Lock()
	defer s.rotateMu.Unlock()
	return s.rotate()
}

// rotate must be called with rotateMu held.
func (s *File) rotate() (bool, error) {
	if s.pipe != nil {
		s.pipe.Cork()
	}

	err := s.swap()

	if s.pipe != nil {
		if uerr := s.pipe.Uncork(); uerr != nil {
			s.log.Warn().Err(uerr).Msg("failed to flush queued lines after rotation")
		}
	}
	if errors.Is(err, errSinkClosed) {
		metrics.RecordRotation(false, nil)
		return false, nil
	}
	metrics.RecordRotation(err == nil, err)
	if err != nil {
		return false, err
	}
	s.log.Info().Msg("log files rotated")
	return true, nil
}

// swap closes the active file, renumbers the backlog and opens a fresh
// file. The active file is reopened even when renumbering fails, so queued
// lines are not lost. A closed sink is left as it is.
func (s *File) swap() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSinkClosed
	}

	if s.file != nil {
		if err := s.file.Close(); err != nil {
			s.log.Warn().Err(err).Msg("failed to close log file before rotation")
		}
		s.file = nil
	}

	err := renumber(s.opts.Dir, s.filename, s.opts.MaxBackLogs)
	if oerr := s.openLocked(); oerr != nil {
		return errors.Join(err, oerr)
	}
	return err
}

func (s *File) rotationRequired(now time.Time) (bool, error) {
	f, err := os.Open(s.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer func() { _ = f.Close() }()

	line, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	line = []byte(strings.TrimSpace(string(line)))
	if len(line) == 0 {
		return false, nil
	}

	ev, err := event.Parse(line)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnparseableLog, err)
	}
	ts, err := ev.Timestamp()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnparseableLog, err)
	}
	return !SameUTCDay(ts, now), nil
}

type logFile struct {
	name  string
	index int // -1 for the active file
}

// listLogFiles returns the regular files in dir named filename or
// filename.N, highest index first.
func listLogFiles(dir, filename string) ([]logFile, error) {
	re := regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(filename) + `(?:\.(\d+))?$`)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []logFile
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		idx := -1
		if m[1] != "" {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			idx = n
		}
		files = append(files, logFile{name: e.Name(), index: idx})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].index > files[j].index })
	return files, nil
}

// renumber deletes backlog files that would exceed max after the shift,
// moves every remaining .N to .N+1 starting from the highest, and moves
// the active file to .0.
func renumber(dir, filename string, max int) error {
	files, err := listLogFiles(dir, filename)
	if err != nil {
		return err
	}

	for _, lf := range files {
		src := filepath.Join(dir, lf.name)
		if lf.index >= max-1 {
			if err := os.Remove(src); err != nil {
				return err
			}
			continue
		}
		dst := filepath.Join(dir, filename+"."+strconv.Itoa(lf.index+1))
		if err := os.Rename(src, dst); err != nil {
			return err
		}
	}
	return nil
}
