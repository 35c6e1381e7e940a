package ibk_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ibk-go/internal/ibk"
	"ibk-go/internal/testutil"
)

func TestRestore_RoundTrip(t *testing.T) {
	files := map[string]string{
		"a.txt":         "alpha",
		"dir/b.bin":     strings.Repeat("b", 8192),
		"dir/sub/c.txt": "",
	}
	h := newHarness(t, files)
	h.backup(t, withCompression)

	target := filepath.Join(t.TempDir(), "restored")
	s, err := h.svc.Restore(h.manifest(t), ibk.RestoreOptions{TargetRoot: target, Threads: 2})
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if s.Restored != 3 || !s.Clean() {
		t.Errorf("summary = %+v", s)
	}
	if s.BytesRestored != int64(5+8192) {
		t.Errorf("BytesRestored = %d", s.BytesRestored)
	}

	got := testutil.ReadTree(t, target)
	if len(got) != len(files) {
		t.Fatalf("restored %d files, want %d", len(got), len(files))
	}
	for rel, content := range files {
		if got[rel] != content {
			t.Errorf("%s = %q, want %q", rel, got[rel], content)
		}
		info, err := os.Stat(filepath.Join(target, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatal(err)
		}
		if !info.ModTime().Equal(testutil.BaseModTime) {
			t.Errorf("%s mtime = %v, want %v", rel, info.ModTime(), testutil.BaseModTime)
		}
	}
}

func TestRestore_ExistingFiles(t *testing.T) {
	h := newHarness(t, map[string]string{"a.txt": "from backup"})
	h.backup(t)
	m := h.manifest(t)

	target := t.TempDir()
	testutil.WriteTree(t, target, map[string]string{"a.txt": "local edit"})

	s, err := h.svc.Restore(m, ibk.RestoreOptions{TargetRoot: target})
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if s.Failed != 1 || !strings.Contains(s.Failures[0].Reason, "already exists") {
		t.Errorf("summary = %+v, want the existing file refused", s)
	}
	if got := testutil.ReadTree(t, target)["a.txt"]; got != "local edit" {
		t.Errorf("a.txt = %q, was overwritten", got)
	}

	s, err = h.svc.Restore(m, ibk.RestoreOptions{TargetRoot: target, Overwrite: true})
	if err != nil || !s.Clean() {
		t.Fatalf("Restore(overwrite) = %+v, %v", s, err)
	}
	if got := testutil.ReadTree(t, target)["a.txt"]; got != "from backup" {
		t.Errorf("a.txt = %q", got)
	}
}

func TestRestore_TamperedCopyIsNotWritten(t *testing.T) {
	h := newHarness(t, map[string]string{"a.txt": "good", "b.txt": "also good"})
	h.backup(t)
	writeStored(t, h, "a.txt", "evil")

	target := t.TempDir()
	s, err := h.svc.Restore(h.manifest(t), ibk.RestoreOptions{TargetRoot: target})
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if s.Restored != 1 || s.Failed != 1 || s.Failures[0].RelativePath != "a.txt" {
		t.Errorf("summary = %+v", s)
	}
	got := testutil.ReadTree(t, target)
	if _, ok := got["a.txt"]; ok {
		t.Error("tampered a.txt was restored")
	}
	if len(got) != 1 {
		t.Errorf("target holds %v, want only b.txt", got)
	}
}

func TestRestore_Prefix(t *testing.T) {
	h := newHarness(t, map[string]string{"docs/a.txt": "a", "docs/b.txt": "b", "music/c.mp3": "c"})
	h.backup(t)
	m := h.manifest(t)

	target := t.TempDir()
	s, err := h.svc.Restore(m, ibk.RestoreOptions{TargetRoot: target, Prefix: "docs"})
	if err != nil || s.Restored != 2 {
		t.Fatalf("Restore(docs) = %+v, %v", s, err)
	}
	if _, ok := testutil.ReadTree(t, target)["music/c.mp3"]; ok {
		t.Error("entry outside the prefix restored")
	}

	if _, err := h.svc.Restore(m, ibk.RestoreOptions{TargetRoot: target, Prefix: "video"}); !errors.Is(err, ibk.ErrNotFound) {
		t.Errorf("Restore(video) error = %v, want ErrNotFound", err)
	}
}
