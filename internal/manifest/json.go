// Package manifest persists backup manifests as JSON documents.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"time"

	"ibk-go/internal/hasher"
	"ibk-go/internal/ibk"
)

// document is the on-disk form of a manifest.
type document struct {
	Version         int       `json:"version"`
	BackupID        string    `json:"backup_id"`
	SourceRoot      string    `json:"source_root"`
	DestinationRoot string    `json:"destination_root"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Algorithm       string    `json:"algorithm"`
	ToolVersion     string    `json:"tool_version"`
	Entries         []entry   `json:"entries"`
}

type entry struct {
	RelativePath string        `json:"relative_path"`
	SizeBytes    int64         `json:"size_bytes"`
	ModifiedTime float64       `json:"modified_time"`
	ContentHash  hasher.Digest `json:"content_hash"`
	Compressed   bool          `json:"compressed"`
	Encrypted    bool          `json:"encrypted,omitempty"`
	BackedUpAt   time.Time     `json:"backed_up_at"`
}

// Modification times are stored as fractional seconds. Microsecond
// resolution survives the float64 round trip for any realistic date.
func toSeconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

func fromSeconds(s float64) time.Time {
	return time.UnixMicro(int64(math.Round(s * 1e6)))
}

// Encode writes m as indented JSON with entries sorted by relative path.
func Encode(w io.Writer, m *ibk.Manifest) error {
	doc := document{
		Version:         m.Version,
		BackupID:        m.BackupID,
		SourceRoot:      m.SourceRoot,
		DestinationRoot: m.DestinationRoot,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
		Algorithm:       string(m.Algorithm),
		ToolVersion:     m.ToolVersion,
		Entries:         make([]entry, 0, m.Len()),
	}
	for _, e := range m.Entries() {
		doc.Entries = append(doc.Entries, entry{
			RelativePath: e.RelativePath,
			SizeBytes:    e.Size,
			ModifiedTime: toSeconds(e.ModTime),
			ContentHash:  e.ContentHash,
			Compressed:   e.Compressed,
			Encrypted:    e.Encrypted,
			BackedUpAt:   e.BackedUpAt.UTC(),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return nil
}

// Decode parses and validates a manifest. Any problem with the document
// yields an error wrapping ibk.ErrManifestCorrupt.
func Decode(r io.Reader) (*ibk.Manifest, error) {
	var doc document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ibk.ErrManifestCorrupt, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after document", ibk.ErrManifestCorrupt)
	}

	if doc.Version < 1 || doc.Version > ibk.ManifestVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ibk.ErrManifestCorrupt, doc.Version)
	}
	if doc.CreatedAt.IsZero() {
		return nil, fmt.Errorf("%w: missing created_at", ibk.ErrManifestCorrupt)
	}
	algo, err := hasher.ParseAlgorithm(doc.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ibk.ErrManifestCorrupt, err)
	}

	m := ibk.NewManifest()
	m.Version = doc.Version
	m.BackupID = doc.BackupID
	m.SourceRoot = doc.SourceRoot
	m.DestinationRoot = doc.DestinationRoot
	m.CreatedAt = doc.CreatedAt
	m.UpdatedAt = doc.UpdatedAt
	m.Algorithm = algo
	m.ToolVersion = doc.ToolVersion

	for i, e := range doc.Entries {
		if err := validPath(e.RelativePath); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ibk.ErrManifestCorrupt, i, err)
		}
		if m.Get(e.RelativePath) != nil {
			return nil, fmt.Errorf("%w: duplicate entry %q", ibk.ErrManifestCorrupt, e.RelativePath)
		}
		if e.SizeBytes < 0 {
			return nil, fmt.Errorf("%w: entry %q: negative size", ibk.ErrManifestCorrupt, e.RelativePath)
		}
		if e.ContentHash.IsZero() {
			return nil, fmt.Errorf("%w: entry %q: missing content_hash", ibk.ErrManifestCorrupt, e.RelativePath)
		}
		m.Put(&ibk.ManifestEntry{
			RelativePath: e.RelativePath,
			Size:         e.SizeBytes,
			ModTime:      fromSeconds(e.ModifiedTime),
			ContentHash:  e.ContentHash,
			Compressed:   e.Compressed,
			Encrypted:    e.Encrypted,
			BackedUpAt:   e.BackedUpAt,
		})
	}
	return m, nil
}

// validPath accepts clean, relative, slash-separated paths that stay
// inside the root they are relative to.
func validPath(p string) error {
	switch {
	case p == "":
		return errors.New("empty relative_path")
	case path.IsAbs(p) || strings.Contains(p, `\`):
		return fmt.Errorf("relative_path %q is not relative", p)
	case path.Clean(p) != p || p == ".":
		return fmt.Errorf("relative_path %q is not clean", p)
	case p == ".." || strings.HasPrefix(p, "../"):
		return fmt.Errorf("relative_path %q escapes the root", p)
	}
	return nil
}
