package ibk

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"ibk-go/internal/hasher"
)

// RestoreOptions configures a restore.
type RestoreOptions struct {
	// TargetRoot is the directory files are restored under.
	TargetRoot string
	// Prefix restricts the restore to entries at or below a relative path.
	Prefix  string
	Threads int
	// Overwrite allows replacing files that already exist under TargetRoot.
	Overwrite  bool
	Decryption DecryptionContext
}

// RestoreSummary is the outcome of a restore.
type RestoreSummary struct {
	Restored      int
	Failed        int
	BytesRestored int64
	Failures      []Failure
}

// Clean reports whether every selected entry was restored.
func (r *RestoreSummary) Clean() bool {
	return r.Failed == 0
}

type restoreResult struct {
	relativePath string
	n            int64
	err          error
}

// Restore writes the stored copies recorded in m back to opts.TargetRoot.
// Each file is decoded, hashed while it is written to a temporary file and
// only moved into place when its digest matches the manifest. The recorded
// modification time is applied to every restored file.
func (s *BackupService) Restore(m *Manifest, opts RestoreOptions) (*RestoreSummary, error) {
	entries := m.Select(opts.Prefix)
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no manifest entries under %q", ErrNotFound, opts.Prefix)
	}
	if err := os.MkdirAll(opts.TargetRoot, 0755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDestinationUnwritable, err)
	}

	s.logger.Info("restore started", "target", opts.TargetRoot, "entries", len(entries))

	results := RunPool(opts.Threads, entries, func(e *ManifestEntry) restoreResult {
		n, err := s.restoreEntry(e, opts)
		return restoreResult{relativePath: e.RelativePath, n: n, err: err}
	})

	summary := &RestoreSummary{}
	for _, r := range results {
		if r.err != nil {
			s.logger.Warn("restore failed", "path", r.relativePath, "error", r.err)
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{RelativePath: r.relativePath, Reason: r.err.Error()})
			continue
		}
		summary.Restored++
		summary.BytesRestored += r.n
	}
	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].RelativePath < summary.Failures[j].RelativePath
	})

	s.logger.Info("restore finished", "restored", summary.Restored, "failed", summary.Failed, "bytes", summary.BytesRestored)
	return summary, nil
}

func (s *BackupService) restoreEntry(e *ManifestEntry, opts RestoreOptions) (int64, error) {
	outPath := filepath.Join(opts.TargetRoot, filepath.FromSlash(e.RelativePath))

	if !opts.Overwrite {
		if _, err := os.Lstat(outPath); err == nil {
			return 0, fmt.Errorf("%w: output file already exists: %s", ErrFileWrite, outPath)
		}
	}

	h, err := hasher.New(e.ContentHash.Algorithm)
	if err != nil {
		return 0, err
	}

	r, err := s.openStored(e, opts.Decryption)
	if err != nil {
		return 0, fmt.Errorf("opening stored copy: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return 0, fmt.Errorf("%w: creating parent directory: %w", ErrFileWrite, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".ibk-restore-*")
	if err != nil {
		return 0, fmt.Errorf("%w: creating temp file: %w", ErrFileWrite, err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	digest := h.NewWriter()
	n, copyErr := io.Copy(io.MultiWriter(tmp, digest), r)
	closeErr := tmp.Close()
	if copyErr != nil {
		return 0, fmt.Errorf("decoding stored copy: %w", copyErr)
	}
	if closeErr != nil {
		return 0, fmt.Errorf("%w: closing temp file: %w", ErrFileWrite, closeErr)
	}

	if got := digest.Digest(); !got.Equal(e.ContentHash) {
		return 0, fmt.Errorf("content hash mismatch: expected %s, got %s", e.ContentHash, got)
	}

	if err := os.Chtimes(tmpPath, e.ModTime, e.ModTime); err != nil {
		return 0, fmt.Errorf("%w: setting file times: %w", ErrFileWrite, err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return 0, fmt.Errorf("%w: moving into place: %w", ErrFileWrite, err)
	}
	success = true

	s.logger.Debug("file restored", "path", outPath, "size", n)
	return n, nil
}
