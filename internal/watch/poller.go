// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package watch

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// binaryExtensions are polled on the slower binary interval.
var binaryExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".ico": {}, ".webp": {}, ".bmp": {},
	".zip": {}, ".gz": {}, ".tgz": {}, ".tar": {}, ".bz2": {}, ".xz": {}, ".7z": {}, ".rar": {},
	".pdf": {}, ".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".bin": {}, ".o": {}, ".a": {},
	".class": {}, ".jar": {}, ".wasm": {}, ".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {},
	".eot": {}, ".mp3": {}, ".mp4": {}, ".wav": {}, ".avi": {}, ".mov": {}, ".db": {}, ".sqlite": {},
}

// IsBinary reports whether path is polled on the binary interval.
func IsBinary(path string) bool {
	_, ok := binaryExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

type fileState struct {
	modTime time.Time
	size    int64
}

// poller detects changes by comparing stat snapshots.
type poller struct {
	ignore         *IgnoreSet
	interval       time.Duration
	binaryInterval time.Duration

	text   map[string]fileState
	binary map[string]fileState
}

func (p *poller) run(ctx context.Context, roots []string, ready func(), emit func(string)) error {
	p.text, p.binary = p.scan(roots, false), p.scan(roots, true)
	ready()

	textTick := time.NewTicker(p.interval)
	defer textTick.Stop()
	binTick := time.NewTicker(p.binaryInterval)
	defer binTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-textTick.C:
			next := p.scan(roots, false)
			diff(p.text, next, emit)
			p.text = next
		case <-binTick.C:
			next := p.scan(roots, true)
			diff(p.binary, next, emit)
			p.binary = next
		}
	}
}

// scan snapshots every non-ignored file of one kind.
func (p *poller) scan(roots []string, binary bool) map[string]fileState {
	out := make(map[string]fileState)
	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if path != root && p.ignore.Ignored(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || IsBinary(path) != binary {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			out[path] = fileState{modTime: info.ModTime(), size: info.Size()}
			return nil
		})
	}
	return out
}

// diff emits added, modified and removed paths.
func diff(prev, next map[string]fileState, emit func(string)) {
	for path, st := range next {
		old, ok := prev[path]
		if !ok || !old.modTime.Equal(st.modTime) || old.size != st.size {
			emit(path)
		}
	}
	for path := range prev {
		if _, ok := next[path]; !ok {
			emit(path)
		}
	}
}
