package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ibk-go/internal/ibk"
)

// CorruptSuffix is appended to a manifest that was set aside as unusable.
const CorruptSuffix = ".corrupt"

// JSONStore is a ManifestStore keeping one JSON document per destination.
type JSONStore struct{}

// NewJSONStore returns a JSON manifest store.
func NewJSONStore() *JSONStore {
	return &JSONStore{}
}

// Load reads the manifest at path. A missing file yields an empty manifest.
func (s *JSONStore) Load(path string) (*ibk.Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ibk.NewManifest(), nil
		}
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return m, nil
}

// Save writes m to a temp file next to path, syncs it and renames it into
// place, so a crash leaves either the old manifest or the new one.
func (s *JSONStore) Save(m *ibk.Manifest, path string) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := Encode(tmpFile, m); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing temp manifest: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp manifest: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("setting manifest permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp manifest: %w", err)
	}
	success = true

	syncDir(dir)
	return nil
}

// Quarantine renames the manifest at path to path+CorruptSuffix,
// replacing an older quarantined copy.
func (s *JSONStore) Quarantine(path string) (string, error) {
	moved := path + CorruptSuffix
	if err := os.Rename(path, moved); err != nil {
		return "", fmt.Errorf("moving manifest aside: %w", err)
	}
	return moved, nil
}

// syncDir flushes the directory entry of a rename. Not every platform
// supports it, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}

var _ ibk.ManifestStore = (*JSONStore)(nil)
