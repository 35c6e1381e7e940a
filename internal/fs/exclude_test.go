package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewExcludeMatcher(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		m, err := NewExcludeMatcher([]string{"", "  ", "# comment", "*.log"})
		if err != nil {
			t.Fatalf("NewExcludeMatcher() error = %v", err)
		}
		if m.Len() != 1 {
			t.Fatalf("expected 1 pattern, got %d", m.Len())
		}
		if m.patterns[0].pattern != "*.log" {
			t.Errorf("expected *.log, got %s", m.patterns[0].pattern)
		}
	})

	t.Run("classifies path vs basename patterns", func(t *testing.T) {
		t.Parallel()
		m, err := NewExcludeMatcher([]string{"*.log", "build/output", "/vendor/"})
		if err != nil {
			t.Fatalf("NewExcludeMatcher() error = %v", err)
		}
		if m.patterns[0].matchPath {
			t.Error("*.log should not be a path pattern")
		}
		if !m.patterns[1].matchPath {
			t.Error("build/output should be a path pattern")
		}
		if !m.patterns[2].matchPath || m.patterns[2].pattern != "vendor" {
			t.Errorf("/vendor/ parsed as %+v, want anchored path pattern vendor", m.patterns[2])
		}
	})

	t.Run("rejects malformed pattern", func(t *testing.T) {
		t.Parallel()
		if _, err := NewExcludeMatcher([]string{"[unterminated"}); err == nil {
			t.Error("expected error for malformed pattern")
		}
	})
}

func TestExcludeMatcher_Match(t *testing.T) {
	tests := []struct {
		name         string
		patterns     []string
		relativePath string
		want         bool
	}{
		{
			name:         "basename glob matches file in root",
			patterns:     []string{"*.log"},
			relativePath: "app.log",
			want:         true,
		},
		{
			name:         "basename glob matches file in subdirectory",
			patterns:     []string{"*.log"},
			relativePath: "sub/app.log",
			want:         true,
		},
		{
			name:         "basename glob does not match different extension",
			patterns:     []string{"*.log"},
			relativePath: "app.txt",
			want:         false,
		},
		{
			name:         "exact basename matches directory at depth",
			patterns:     []string{"node_modules"},
			relativePath: "web/app/node_modules",
			want:         true,
		},
		{
			name:         "exact basename is not a substring match",
			patterns:     []string{"node_modules"},
			relativePath: "web/node_modules_backup",
			want:         false,
		},
		{
			name:         "path pattern matches exact relative path",
			patterns:     []string{"build/output"},
			relativePath: "build/output",
			want:         true,
		},
		{
			name:         "path pattern does not match wrong path",
			patterns:     []string{"build/output"},
			relativePath: "src/output",
			want:         false,
		},
		{
			name:         "path pattern with glob",
			patterns:     []string{"build/*.o"},
			relativePath: "build/main.o",
			want:         true,
		},
		{
			name:         "star does not cross separators",
			patterns:     []string{"build/*"},
			relativePath: "build/sub/main.o",
			want:         false,
		},
		{
			name:         "anchored pattern",
			patterns:     []string{"/tmp"},
			relativePath: "tmp",
			want:         true,
		},
		{
			name:         "question mark wildcard",
			patterns:     []string{"?.txt"},
			relativePath: "a.txt",
			want:         true,
		},
		{
			name:         "question mark does not match multiple chars",
			patterns:     []string{"?.txt"},
			relativePath: "ab.txt",
			want:         false,
		},
		{
			name:         "character class",
			patterns:     []string{"*.[oa]"},
			relativePath: "main.o",
			want:         true,
		},
		{
			name:         "no patterns matches nothing",
			patterns:     nil,
			relativePath: "anything.txt",
			want:         false,
		},
		{
			name:         "empty string path",
			patterns:     []string{"*"},
			relativePath: "",
			want:         false,
		},
		{
			name:         "multiple patterns second matches",
			patterns:     []string{"*.log", "*.tmp"},
			relativePath: "data.tmp",
			want:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := NewExcludeMatcher(tt.patterns)
			if err != nil {
				t.Fatalf("NewExcludeMatcher() error = %v", err)
			}
			if got := m.Match(tt.relativePath); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.relativePath, got, tt.want)
			}
			if got := m.Func()(tt.relativePath, false); got != tt.want {
				t.Errorf("Func()(%q) = %v, want %v", tt.relativePath, got, tt.want)
			}
		})
	}
}

func TestParseExcludeFile(t *testing.T) {
	t.Run("reads patterns from file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), DefaultExcludeFile)
		content := "*.log\n# comment\n\n*.tmp\nbuild/output\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("writing test file: %v", err)
		}

		patterns, err := ParseExcludeFile(path)
		if err != nil {
			t.Fatalf("ParseExcludeFile() error = %v", err)
		}
		if len(patterns) != 5 {
			t.Fatalf("expected 5 raw lines, got %d", len(patterns))
		}

		m, err := NewExcludeMatcher(patterns)
		if err != nil {
			t.Fatalf("NewExcludeMatcher() error = %v", err)
		}
		if m.Len() != 3 {
			t.Errorf("expected 3 parsed patterns, got %d", m.Len())
		}
	})

	t.Run("returns nil for missing file", func(t *testing.T) {
		t.Parallel()
		patterns, err := ParseExcludeFile("/nonexistent/" + DefaultExcludeFile)
		if err != nil {
			t.Fatalf("ParseExcludeFile() error = %v", err)
		}
		if patterns != nil {
			t.Errorf("expected nil patterns, got %v", patterns)
		}
	})
}
