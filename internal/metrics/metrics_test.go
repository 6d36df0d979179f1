// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordChildStart(t *testing.T) {
	before := testutil.ToFloat64(ChildStarts.WithLabelValues("manual"))
	RecordChildStart("manual")

	if got := testutil.ToFloat64(ChildStarts.WithLabelValues("manual")); got != before+1 {
		t.Errorf("expected manual starts %v, got %v", before+1, got)
	}
	if got := testutil.ToFloat64(ChildUp); got != 1 {
		t.Errorf("expected child_up 1, got %v", got)
	}
}

func TestRecordChildExit(t *testing.T) {
	tests := []struct {
		name       string
		crashed    bool
		crashCount int
		wantDelta  float64
	}{
		{name: "intentional exit", crashed: false, crashCount: 0, wantDelta: 0},
		{name: "crash", crashed: true, crashCount: 2, wantDelta: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(ChildCrashes)
			RecordChildExit(tt.crashed, tt.crashCount)

			if got := testutil.ToFloat64(ChildCrashes) - before; got != tt.wantDelta {
				t.Errorf("expected crash delta %v, got %v", tt.wantDelta, got)
			}
			if got := testutil.ToFloat64(ChildUp); got != 0 {
				t.Errorf("expected child_up 0, got %v", got)
			}
			if got := testutil.ToFloat64(CrashCount); got != float64(tt.crashCount) {
				t.Errorf("expected crash_count %d, got %v", tt.crashCount, got)
			}
		})
	}
}

func TestRecordRotation(t *testing.T) {
	tests := []struct {
		name    string
		rotated bool
		err     error
		label   string
	}{
		{name: "rotated", rotated: true, label: "rotated"},
		{name: "skipped", rotated: false, label: "skipped"},
		{name: "error wins over rotated", rotated: true, err: errors.New("rename failed"), label: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(LogRotations.WithLabelValues(tt.label))
			RecordRotation(tt.rotated, tt.err)
			if got := testutil.ToFloat64(LogRotations.WithLabelValues(tt.label)); got != before+1 {
				t.Errorf("expected %s count %v, got %v", tt.label, before+1, got)
			}
		})
	}
}

func TestRecordNotification(t *testing.T) {
	before := testutil.ToFloat64(Notifications.WithLabelValues("slack", "sent"))
	RecordNotification("slack", "sent")
	if got := testutil.ToFloat64(Notifications.WithLabelValues("slack", "sent")); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequests.WithLabelValues("POST", "/api/v1/restart", "202"))
	RecordAPIRequest("POST", "/api/v1/restart", "202", 0.01)

	if got := testutil.ToFloat64(APIRequests.WithLabelValues("POST", "/api/v1/restart", "202")); got != before+1 {
		t.Errorf("expected %v requests, got %v", before+1, got)
	}

	active := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != active+1 {
		t.Errorf("expected active %v, got %v", active+1, got)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != active {
		t.Errorf("expected active %v, got %v", active, got)
	}
}
