// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package watch

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// DependencyDirs are always ignored wherever they appear.
var DependencyDirs = []string{"node_modules", "bower_components", "vendor"}

// RegexpPrefix marks an ignore entry as a regular expression.
const RegexpPrefix = "re:"

// IgnoreSet decides which paths never count as source changes. Checks run
// in order: dot-prefixed segments, dependency directories, then registered
// patterns. It is safe for concurrent use.
type IgnoreSet struct {
	root  string
	roots []string

	mu       sync.RWMutex
	literals []string
	globs    []string
	regexps  []*regexp.Regexp
}

// NewIgnoreSet creates a set whose relative patterns resolve against root.
// Segment checks and globs apply to a path relative to whichever of root
// and extra contains it, so an extra root such as ~/.local/lib is watched
// normally.
func NewIgnoreSet(root string, extra ...string) (*IgnoreSet, error) {
	s := &IgnoreSet{}
	for _, r := range append([]string{root}, extra...) {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("resolve watch root: %w", err)
		}
		s.roots = append(s.roots, filepath.Clean(abs))
	}
	s.root = s.roots[0]
	return s, nil
}

// Root returns the absolute root.
func (s *IgnoreSet) Root() string { return s.root }

// Add registers a pattern. Entries starting with "re:" are regular
// expressions matched against the absolute path; entries containing glob
// metacharacters are doublestar patterns matched against the root-relative
// path; anything else is a literal file or directory.
func (s *IgnoreSet) Add(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil
	}

	switch {
	case strings.HasPrefix(pattern, RegexpPrefix):
		re, err := regexp.Compile(strings.TrimPrefix(pattern, RegexpPrefix))
		if err != nil {
			return fmt.Errorf("ignore pattern %q: %w", pattern, err)
		}
		s.mu.Lock()
		s.regexps = append(s.regexps, re)
		s.mu.Unlock()

	case strings.ContainsAny(pattern, "*?[{"):
		glob := filepath.ToSlash(pattern)
		if !doublestar.ValidatePattern(glob) {
			return fmt.Errorf("ignore pattern %q: invalid glob", pattern)
		}
		s.mu.Lock()
		s.globs = append(s.globs, glob)
		s.mu.Unlock()

	default:
		s.mu.Lock()
		s.literals = append(s.literals, s.abs(pattern))
		s.mu.Unlock()
	}
	return nil
}

// AddAll registers several patterns, stopping at the first invalid one.
func (s *IgnoreSet) AddAll(patterns []string) error {
	for _, p := range patterns {
		if err := s.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// Ignored reports whether path should never trigger a restart.
func (s *IgnoreSet) Ignored(path string) bool {
	abs := s.abs(path)
	rel := filepath.ToSlash(s.relative(abs))

	for _, seg := range strings.Split(rel, "/") {
		if len(seg) > 1 && seg[0] == '.' && seg != ".." {
			return true
		}
		for _, dep := range DependencyDirs {
			if seg == dep {
				return true
			}
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, lit := range s.literals {
		if abs == lit || strings.HasPrefix(abs, lit+string(filepath.Separator)) {
			return true
		}
	}
	for _, glob := range s.globs {
		if ok, _ := doublestar.Match(glob, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(glob, filepath.ToSlash(abs)); ok {
			return true
		}
	}
	for _, re := range s.regexps {
		if re.MatchString(abs) {
			return true
		}
	}
	return false
}

// relative returns abs relative to the deepest root containing it, or its
// base name when no root does.
func (s *IgnoreSet) relative(abs string) string {
	best := ""
	for _, r := range s.roots {
		if (abs == r || strings.HasPrefix(abs, r+string(filepath.Separator)) || r == string(filepath.Separator)) &&
			len(r) > len(best) {
			best = r
		}
	}
	if best == "" {
		return filepath.Base(abs)
	}
	rel, err := filepath.Rel(best, abs)
	if err != nil {
		return filepath.Base(abs)
	}
	return rel
}

func (s *IgnoreSet) abs(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	return filepath.Clean(path)
}
