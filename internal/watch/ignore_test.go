// Trawler - Single-Worker Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trawler

package watch

import (
	"path/filepath"
	"testing"
)

func TestIgnoreSet(t *testing.T) {
	root := t.TempDir()
	set, err := NewIgnoreSet(root)
	if err != nil {
		t.Fatalf("NewIgnoreSet: %v", err)
	}
	if err := set.AddAll([]string{
		"logs",
		filepath.Join(root, "data", "cache"),
		"**/*.swp",
		"re:_test\\.go$",
	}); err != nil {
		t.Fatalf("AddAll: %v", err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{path: "main.go", want: false},
		{path: "internal/server/server.go", want: false},
		{path: ".git/HEAD", want: true},
		{path: "web/.cache/x.js", want: true},
		{path: ".env", want: true},
		{path: "node_modules/left-pad/index.js", want: true},
		{path: "web/bower_components/x.js", want: true},
		{path: "vendor/github.com/x/y.go", want: true},
		{path: "logs", want: true},
		{path: "logs/api/crash.log", want: true},
		{path: "logsheet.go", want: false},
		{path: "data/cache/blob", want: true},
		{path: "data/other", want: false},
		{path: "editor/main.go.swp", want: true},
		{path: "server_test.go", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := set.Ignored(filepath.Join(root, tt.path)); got != tt.want {
				t.Errorf("Ignored(%s) = %v, expected %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIgnoreSetRelativeInput(t *testing.T) {
	root := t.TempDir()
	set, _ := NewIgnoreSet(root)
	_ = set.Add("tmp")
	if !set.Ignored("tmp/file") {
		t.Error("expected root-relative input path to be resolved against the root")
	}
	if set.Ignored(root) {
		t.Error("expected the root itself not to be ignored")
	}
}

func TestIgnoreSetExtraRootUnderDotDir(t *testing.T) {
	root := t.TempDir()
	extra := filepath.Join(t.TempDir(), ".local", "lib")
	set, err := NewIgnoreSet(root, extra)
	if err != nil {
		t.Fatalf("NewIgnoreSet: %v", err)
	}
	_ = set.Add("**/*.swp")

	tests := []struct {
		path string
		want bool
	}{
		{path: filepath.Join(extra, "x.go"), want: false},
		{path: filepath.Join(extra, "pkg", "y.go"), want: false},
		{path: filepath.Join(extra, ".cache", "y.go"), want: true},
		{path: filepath.Join(extra, "node_modules", "z.js"), want: true},
		{path: filepath.Join(extra, "x.go.swp"), want: true},
		{path: filepath.Join(root, ".git", "HEAD"), want: true},
		{path: filepath.Join(root, "main.go"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := set.Ignored(tt.path); got != tt.want {
				t.Errorf("Ignored(%s) = %v, expected %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIgnoreSetNestedRoots(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, ".tools")
	set, _ := NewIgnoreSet(root, nested)
	if set.Ignored(filepath.Join(nested, "gen.go")) {
		t.Error("expected a path under an explicitly watched dot-directory root to count")
	}
	if !set.Ignored(filepath.Join(root, ".other", "gen.go")) {
		t.Error("expected other dot-directories under the main root to stay ignored")
	}
}

func TestIgnoreSetInvalidPatterns(t *testing.T) {
	set, _ := NewIgnoreSet(t.TempDir())
	for _, p := range []string{"re:([", "[unclosed"} {
		if err := set.Add(p); err == nil {
			t.Errorf("expected error for %q", p)
		}
	}
	if err := set.Add("   "); err != nil {
		t.Errorf("expected blank pattern to be a no-op, got %v", err)
	}
}

func TestIsBinary(t *testing.T) {
	tests := map[string]bool{
		"logo.PNG":   true,
		"bundle.zip": true,
		"main.go":    false,
		"README":     false,
	}
	for path, want := range tests {
		if got := IsBinary(path); got != want {
			t.Errorf("IsBinary(%s) = %v, expected %v", path, got, want)
		}
	}
}
