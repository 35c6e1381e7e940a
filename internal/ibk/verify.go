package ibk

import (
	"errors"
	"fmt"
	"io"

	"ibk-go/internal/hasher"
)

// VerifyStatus classifies one stored copy.
type VerifyStatus string

const (
	VerifyOK         VerifyStatus = "ok"
	VerifyMissing    VerifyStatus = "missing"
	VerifyMismatched VerifyStatus = "mismatched"
	VerifyUnreadable VerifyStatus = "unreadable"
)

// FileVerification is the verdict for one manifest entry.
type FileVerification struct {
	RelativePath string
	Status       VerifyStatus
	Detail       string
}

// VerificationReport lists a verdict per manifest entry, ordered by path.
type VerificationReport struct {
	Files      []FileVerification
	OK         int
	Missing    int
	Mismatched int
	Unreadable int
}

// Clean reports whether every stored copy verified.
func (r *VerificationReport) Clean() bool {
	return r.Missing == 0 && r.Mismatched == 0 && r.Unreadable == 0
}

// Findings returns the verdicts that are not ok.
func (r *VerificationReport) Findings() []FileVerification {
	var out []FileVerification
	for _, f := range r.Files {
		if f.Status != VerifyOK {
			out = append(out, f)
		}
	}
	return out
}

// VerifyOptions configures a verification pass.
type VerifyOptions struct {
	Threads int
	// Prefix restricts verification to entries at or below a relative path.
	Prefix string
	// Decryption is required to verify encrypted copies. Without it they
	// are reported unreadable.
	Decryption DecryptionContext
}

// Verify re-hashes every stored copy recorded in m and compares it with the
// recorded content hash. It never modifies m or the vault.
func (s *BackupService) Verify(m *Manifest, opts VerifyOptions) *VerificationReport {
	entries := m.Select(opts.Prefix)
	s.logger.Info("verify started", "entries", len(entries))

	verdicts := RunPool(opts.Threads, entries, func(e *ManifestEntry) FileVerification {
		return s.verifyEntry(e, opts.Decryption)
	})

	byPath := make(map[string]FileVerification, len(verdicts))
	for _, v := range verdicts {
		byPath[v.RelativePath] = v
	}

	report := &VerificationReport{Files: make([]FileVerification, 0, len(entries))}
	for _, e := range entries {
		v := byPath[e.RelativePath]
		report.Files = append(report.Files, v)
		switch v.Status {
		case VerifyOK:
			report.OK++
		case VerifyMissing:
			report.Missing++
		case VerifyMismatched:
			report.Mismatched++
		case VerifyUnreadable:
			report.Unreadable++
		}
		if v.Status != VerifyOK {
			s.logger.Warn("verify finding", "path", v.RelativePath, "status", v.Status, "detail", v.Detail)
		}
	}

	s.logger.Info("verify finished", "ok", report.OK, "missing", report.Missing, "mismatched", report.Mismatched, "unreadable", report.Unreadable)
	return report
}

func (s *BackupService) verifyEntry(e *ManifestEntry, dec DecryptionContext) FileVerification {
	v := FileVerification{RelativePath: e.RelativePath}

	h, err := hasher.New(e.ContentHash.Algorithm)
	if err != nil {
		v.Status, v.Detail = VerifyUnreadable, err.Error()
		return v
	}

	r, err := s.openStored(e, dec)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			v.Status, v.Detail = VerifyMissing, fmt.Sprintf("stored copy %s not found", e.StoredName())
		} else {
			v.Status, v.Detail = VerifyUnreadable, err.Error()
		}
		return v
	}
	defer r.Close()

	got, err := h.HashReader(r)
	if err != nil {
		if errors.Is(err, ErrFileRead) {
			v.Status = VerifyUnreadable
		} else {
			v.Status = VerifyMismatched
		}
		v.Detail = err.Error()
		return v
	}
	if !got.Equal(e.ContentHash) {
		v.Status = VerifyMismatched
		v.Detail = fmt.Sprintf("expected %s, got %s", e.ContentHash, got)
		return v
	}

	v.Status = VerifyOK
	return v
}

// openStored opens the stored copy of e and decodes it back to the source bytes.
// Read failures of the stored copy itself wrap ErrFileRead; decoder failures do not.
func (s *BackupService) openStored(e *ManifestEntry, dec DecryptionContext) (io.ReadCloser, error) {
	if e.Encrypted && dec == nil {
		return nil, fmt.Errorf("%w: %s is encrypted", ErrLocked, e.RelativePath)
	}
	if e.Compressed && s.compressor == nil {
		return nil, fmt.Errorf("%s is compressed but no compressor is configured", e.RelativePath)
	}

	rc, err := s.vault.Open(e.StoredName())
	if err != nil {
		return nil, err
	}

	st := &stack{Reader: &taggedReader{r: rc, tag: ErrFileRead}, closers: []io.Closer{rc}}
	if e.Encrypted {
		st.push(dec.Decrypt)
	}
	if e.Compressed {
		st.push(s.compressor.Decompress)
	}
	return st, nil
}
