package vault

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"ibk-go/internal/ibk"
)

// FileSystemVault is a filesystem-based implementation of the Vault interface.
// Stored copies mirror the source layout under the destination root:
//
//	<root>/
//	  .backup_manifest.json
//	  docs/report.txt
//	  docs/big.log.gz      (compressed copy)
//	  keys/id.age          (encrypted copy)
type FileSystemVault struct {
	root string
}

// NewFileSystemVault creates a vault rooted at the given path.
// Nothing is created on disk until ValidateSetup(true) or Put is called.
func NewFileSystemVault(root string) *FileSystemVault {
	return &FileSystemVault{root: root}
}

// Root returns the destination root.
func (v *FileSystemVault) Root() string {
	return v.root
}

// Put stores everything read from r under name.
func (v *FileSystemVault) Put(name string, r io.Reader) (int64, error) {
	destPath, err := v.path(name)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create parent directory: %w", err)
	}
	return writeFile(destPath, r)
}

// Open returns a reader for the stored copy called name.
func (v *FileSystemVault) Open(name string) (io.ReadCloser, error) {
	srcPath, err := v.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(srcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ibk.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to open stored copy: %w", err)
	}
	return f, nil
}

// ValidateSetup verifies that the vault root is usable.
func (v *FileSystemVault) ValidateSetup(create bool) error {
	if create {
		if err := os.MkdirAll(v.root, 0755); err != nil {
			return fmt.Errorf("failed to create vault root: %w", err)
		}
	}

	info, err := os.Stat(v.root)
	if err != nil {
		if !create && errors.Is(err, os.ErrNotExist) {
			// Created on the first real run.
			return nil
		}
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}
	if !create {
		return nil
	}

	f, err := os.CreateTemp(v.root, ".ibk-writable-*")
	if err != nil {
		return fmt.Errorf("vault root not writable: %w", err)
	}
	f.Close()
	return os.Remove(f.Name())
}

// path maps a slash-separated stored name to a path under the root,
// rejecting names that would escape it.
func (v *FileSystemVault) path(name string) (string, error) {
	clean := path.Clean(name)
	if name == "" || clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid stored name: %q", name)
	}
	return filepath.Join(v.root, filepath.FromSlash(clean)), nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func writeFile(destPath string, r io.Reader) (int64, error) {
	// Create temp file in the same directory to ensure atomic rename works
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return 0, fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return written, nil
}

// Compile-time check that FileSystemVault implements ibk.Vault interface
var _ ibk.Vault = (*FileSystemVault)(nil)
