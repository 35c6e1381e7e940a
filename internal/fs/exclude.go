package fs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"ibk-go/internal/ibk"
)

// DefaultExcludeFile is the per-source file listing extra exclude patterns.
const DefaultExcludeFile = ".ibkignore"

// excludePattern is a parsed exclude pattern with its matching strategy.
type excludePattern struct {
	pattern   string
	matchPath bool // true = match against relative path; false = match against basename only
}

// ExcludeMatcher checks relative paths against a set of exclude patterns
// using filepath.Match syntax.
// Patterns without '/' match against the entry's basename only, so during a
// walk they exclude a matching file or directory at any depth.
// Patterns with '/' match against the full relative path from the walk root;
// a leading '/' is allowed and ignored.
type ExcludeMatcher struct {
	patterns []excludePattern
}

// NewExcludeMatcher creates an ExcludeMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped. A malformed pattern
// is an error.
func NewExcludeMatcher(rawPatterns []string) (*ExcludeMatcher, error) {
	var patterns []excludePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		p := excludePattern{pattern: raw, matchPath: strings.Contains(raw, "/")}
		if p.matchPath {
			p.pattern = strings.TrimSuffix(strings.TrimPrefix(raw, "/"), "/")
		}
		if _, err := path.Match(p.pattern, ""); err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", raw, err)
		}
		patterns = append(patterns, p)
	}
	return &ExcludeMatcher{patterns: patterns}, nil
}

// Len returns the number of active patterns.
func (m *ExcludeMatcher) Len() int {
	return len(m.patterns)
}

// Match reports whether the given slash-separated relative path is excluded.
func (m *ExcludeMatcher) Match(relativePath string) bool {
	if len(m.patterns) == 0 || relativePath == "" {
		return false
	}

	normalized := filepath.ToSlash(relativePath)
	basename := path.Base(normalized)

	for _, p := range m.patterns {
		target := basename
		if p.matchPath {
			target = normalized
		}
		if matched, _ := path.Match(p.pattern, target); matched {
			return true
		}
	}
	return false
}

// Func adapts the matcher to an ibk.ExcludeFunc.
func (m *ExcludeMatcher) Func() ibk.ExcludeFunc {
	return func(relativePath string, _ bool) bool {
		return m.Match(relativePath)
	}
}

// ParseExcludeFile reads an exclude file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseExcludeFile(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening exclude file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading exclude file: %w", err)
	}
	return patterns, nil
}
