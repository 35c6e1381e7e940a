package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"ibk-go/internal/ibk"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// It performs actual filesystem operations using the os package.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// Resolve converts a raw path to a cleaned absolute path with symlinks
// evaluated. The path does not have to exist.
func (m *OSFilesystemManager) Resolve(rawPath string) (string, error) {
	if rawPath == "" {
		return "", fmt.Errorf("empty path")
	}
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved, nil
	}
	return absPath, nil
}

// Stat returns fresh metadata for a path.
func (m *OSFilesystemManager) Stat(path string) (ibk.Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ibk.Entry{}, err
	}
	return entryFromInfo("", info), nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Walk yields directories and regular files under root. Symlinks, devices,
// named pipes and sockets are skipped.
func (m *OSFilesystemManager) Walk(root string, exclude ibk.ExcludeFunc) iter.Seq2[ibk.Entry, error] {
	return func(yield func(ibk.Entry, error) bool) {
		start, err := filepath.EvalSymlinks(root)
		if err != nil {
			yield(ibk.Entry{}, fmt.Errorf("resolving root: %w", err))
			return
		}

		filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
			rel, relErr := filepath.Rel(start, p)
			if relErr != nil {
				return relErr
			}
			rel = filepath.ToSlash(rel)
			if rel == "." {
				rel = ""
			}

			if err != nil {
				// WalkDir reports an unreadable directory after it was
				// visited; returning nil skips its contents.
				if !yield(ibk.Entry{RelativePath: rel, IsDir: d == nil || d.IsDir()}, err) {
					return filepath.SkipAll
				}
				return nil
			}
			if rel == "" {
				return nil
			}

			isDir := d.IsDir()
			if !isDir && !d.Type().IsRegular() {
				return nil
			}
			if exclude != nil && exclude(rel, isDir) {
				if isDir {
					return filepath.SkipDir
				}
				return nil
			}

			info, err := d.Info()
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					// Removed since the directory was listed.
					return nil
				}
				if !yield(ibk.Entry{RelativePath: rel, IsDir: isDir}, fmt.Errorf("stat %s: %w", rel, err)) {
					return filepath.SkipAll
				}
				if isDir {
					return filepath.SkipDir
				}
				return nil
			}

			if !yield(entryFromInfo(rel, info), nil) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

func entryFromInfo(rel string, info fs.FileInfo) ibk.Entry {
	e := ibk.Entry{
		RelativePath: rel,
		ModTime:      info.ModTime(),
		IsDir:        info.IsDir(),
	}
	if !e.IsDir {
		e.Size = info.Size()
	}
	return e
}

// Compile-time check that OSFilesystemManager implements ibk.FilesystemManager interface
var _ ibk.FilesystemManager = (*OSFilesystemManager)(nil)
