// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

// Package watch detects source changes under the app's directory and turns
// bursts of filesystem events into a single debounced signal.
//
// Two backends are available: fsnotify for native change notification, and
// a stat poller for filesystems where native events are unreliable (network
// mounts, some container volumes). The poller checks binary files on a
// slower interval than text files.
//
// No change is reported until the initial scan has finished and Ready is
// closed, so files discovered during the scan never trigger a restart.
package watch
