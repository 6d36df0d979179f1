// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package event

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// EntryType classifies where a log event came from.
type EntryType string

const (
	// EntryAppOutput is a line the child wrote to stdout.
	EntryAppOutput EntryType = "app-output"

	// EntryAppError is a line the child wrote to stderr.
	EntryAppError EntryType = "app-error"

	// EntryTrawler is a message produced by the supervisor itself.
	EntryTrawler EntryType = "trawler"
)

// Kind is the severity of a supervisor message. It selects the console log
// level and is not part of the wire format.
type Kind string

const (
	KindMessage   Kind = "message"
	KindSuccess   Kind = "success"
	KindImportant Kind = "important"
	KindWarning   Kind = "warning"
	KindError     Kind = "error"
)

// TimeFormat is the ISO-8601 UTC layout used for the time field.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// ErrEmptyLine is returned by Parse when given a blank line.
var ErrEmptyLine = errors.New("event: empty line")

// LogEvent is a single structured log entry.
type LogEvent struct {
	Name               string         `json:"name"`
	Hostname           string         `json:"hostname"`
	PID                int            `json:"pid"`
	Time               string         `json:"time"`
	AppUptimeMs        int64          `json:"appUptimeMs"`
	SupervisorUptimeMs int64          `json:"supervisorUptimeMs"`
	EntryType          EntryType      `json:"entryType"`
	Message            string         `json:"message"`
	Data               map[string]any `json:"data"`
	Error              string         `json:"error,omitempty"`
}

// Timestamp parses the event's time field.
func (e *LogEvent) Timestamp() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.Time)
}

// Encode returns the NDJSON line for the event, including the trailing newline.
func (e *LogEvent) Encode() ([]byte, error) {
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode log event: %w", err)
	}
	return append(b, '\n'), nil
}

// Parse decodes a single NDJSON line.
func Parse(line []byte) (*LogEvent, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, ErrEmptyLine
	}
	var ev LogEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, fmt.Errorf("parse log event: %w", err)
	}
	return &ev, nil
}

// Stamp carries the identity and clocks shared by every event of a run.
type Stamp struct {
	Name            string
	Hostname        string
	PID             int
	SupervisorStart time.Time

	// AppStart is zero while no child has been started.
	AppStart time.Time
}

// New builds an event timestamped at now.
func (s *Stamp) New(now time.Time, entryType EntryType, message string, data map[string]any) *LogEvent {
	if data == nil {
		data = map[string]any{}
	}
	var appUptime int64
	if !s.AppStart.IsZero() {
		appUptime = now.Sub(s.AppStart).Milliseconds()
	}
	return &LogEvent{
		Name:               s.Name,
		Hostname:           s.Hostname,
		PID:                s.PID,
		Time:               now.UTC().Format(TimeFormat),
		AppUptimeMs:        appUptime,
		SupervisorUptimeMs: now.Sub(s.SupervisorStart).Milliseconds(),
		EntryType:          entryType,
		Message:            message,
		Data:               data,
	}
}
