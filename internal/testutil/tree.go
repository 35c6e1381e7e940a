package testutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// BaseModTime is the modification time WriteTree gives every file.
var BaseModTime = time.Date(2024, 2, 28, 9, 30, 15, 123456000, time.UTC)

// WriteTree creates files under root from a map of slash-separated
// relative path to content. Every file gets BaseModTime so repeated runs
// see identical metadata.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		WriteFile(t, root, rel, content, BaseModTime)
	}
}

// WriteFile writes one file under root and sets its modification time.
func WriteFile(t *testing.T, root, rel, content string, modTime time.Time) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("creating parent of %s: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", rel, err)
	}
	SetModTime(t, root, rel, modTime)
}

// SetModTime changes the modification time of root/rel.
func SetModTime(t *testing.T, root, rel string, modTime time.Time) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.Chtimes(p, modTime, modTime); err != nil {
		t.Fatalf("setting mtime of %s: %v", rel, err)
	}
}

// ReadTree returns every regular file under root keyed by slash-separated
// relative path. Files whose base name is in skip are left out.
func ReadTree(t *testing.T, root string, skip ...string) map[string]string {
	t.Helper()
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}

	out := make(map[string]string)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || skipped[d.Name()] {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("reading tree %s: %v", root, err)
	}
	return out
}

// Snapshot records size and modification time of every file under root,
// for asserting that an operation left a tree untouched.
func Snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		out[filepath.ToSlash(rel)] = fmt.Sprintf("%s %d %s", info.Mode(), info.Size(), info.ModTime().UTC().Format(time.RFC3339Nano))
		return nil
	})
	if err != nil {
		t.Fatalf("snapshotting %s: %v", root, err)
	}
	return out
}
