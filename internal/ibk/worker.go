package ibk

import (
	"errors"
	"fmt"
	"io"
	"time"

	"ibk-go/internal/hasher"
)

// runContext holds per-run settings shared read-only by all workers.
type runContext struct {
	dryRun    bool
	startedAt time.Time
	hasher    *hasher.Hasher
}

// process executes one task. It never panics on I/O failure and never
// touches the manifest: everything it learns is returned in the result.
func (s *BackupService) process(task BackupTask, run *runContext) BackupResult {
	rel := task.Entry.RelativePath

	if task.Reason == ReasonModTimeChanged && task.Prior != nil {
		digest, err := s.rehash(task)
		if err != nil {
			s.logger.Warn("file failed", "path", rel, "error", err)
			return failed(rel, task.Reason, err)
		}
		if digest.Equal(task.Prior.ContentHash) {
			res := BackupResult{RelativePath: rel, Status: StatusSkipped, Reason: task.Reason, Refreshed: true}
			if !run.dryRun {
				entry := *task.Prior
				entry.ModTime = task.Entry.ModTime
				entry.BackedUpAt = run.startedAt
				res.Entry = &entry
			}
			s.logger.Debug("content unchanged, modification time refreshed", "path", rel)
			return res
		}
	}

	if run.dryRun {
		return BackupResult{RelativePath: rel, Status: StatusCopied, Reason: task.Reason, BytesRead: task.Entry.Size}
	}

	entry, n, err := s.copy(task, run)
	if err != nil {
		s.logger.Warn("file failed", "path", rel, "error", err)
		return failed(rel, task.Reason, err)
	}

	s.logger.Info("file backed up", "path", rel, "reason", task.Reason, "size", n, "compressed", entry.Compressed)
	return BackupResult{RelativePath: rel, Status: StatusCopied, Reason: task.Reason, Entry: entry, BytesRead: n}
}

// rehash fingerprints the source with the algorithm of its prior entry so
// the two digests are comparable.
func (s *BackupService) rehash(task BackupTask) (hasher.Digest, error) {
	h, err := hasher.New(task.Prior.ContentHash.Algorithm)
	if err != nil {
		return hasher.Digest{}, fmt.Errorf("%w: %w", ErrFileRead, err)
	}

	f, err := s.fsmgr.Open(task.SourcePath)
	if err != nil {
		return hasher.Digest{}, fmt.Errorf("%w: %w", ErrFileRead, err)
	}
	defer f.Close()

	src := &sourceReader{r: f, w: io.Discard, atEOF: s.unchangedCheck(task)}
	digest, err := h.HashReader(src)
	if err != nil {
		return hasher.Digest{}, err
	}
	return digest, nil
}

// copy streams the source through the digest and the configured codecs into
// the vault. The stored copy is only committed if the source still has the
// size and modification time it was scanned with, which keeps the recorded
// hash consistent with the recorded metadata.
func (s *BackupService) copy(task BackupTask, run *runContext) (*ManifestEntry, int64, error) {
	f, err := s.fsmgr.Open(task.SourcePath)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrFileRead, err)
	}
	defer f.Close()

	digest := run.hasher.NewWriter()
	src := &sourceReader{r: f, w: digest, atEOF: s.unchangedCheck(task)}

	st := &stack{Reader: src}
	defer st.Close()
	if task.Compress {
		st.push(s.compressor.Compress)
	}
	if task.Encrypt {
		st.push(s.encryptor.Encrypt)
	}

	if _, err := s.vault.Put(task.StoredName, st); err != nil {
		if errors.Is(err, ErrFileRead) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("%w: %w", ErrFileWrite, err)
	}

	return &ManifestEntry{
		RelativePath: task.Entry.RelativePath,
		Size:         src.n,
		ModTime:      task.Entry.ModTime,
		ContentHash:  digest.Digest(),
		Compressed:   task.Compress,
		Encrypted:    task.Encrypt,
		BackedUpAt:   run.startedAt,
	}, src.n, nil
}

// unchangedCheck re-stats the source once it has been read to the end.
func (s *BackupService) unchangedCheck(task BackupTask) func(int64) error {
	return func(n int64) error {
		current, err := s.fsmgr.Stat(task.SourcePath)
		if err != nil {
			return fmt.Errorf("%w: re-stat: %w", ErrFileRead, err)
		}
		if n != task.Entry.Size || !current.SameMetadata(task.Entry) {
			return fmt.Errorf("%w: file changed during backup (size %d -> %d)", ErrFileRead, task.Entry.Size, current.Size)
		}
		return nil
	}
}
