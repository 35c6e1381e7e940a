package ibk

import "io"

// Vault provides an interface for the destination tree of a backup.
// Stored copies are addressed by slash-separated names relative to the
// destination root. All operations stream so large files are never held
// in memory.
type Vault interface {
	// Put stores everything read from r under name, replacing any existing copy.
	// The copy becomes visible only once r has been read to EOF without error;
	// on failure the previous copy, if any, is left untouched.
	// Returns the number of bytes stored.
	Put(name string, r io.Reader) (int64, error)

	// Open returns a reader for a stored copy. A missing copy yields an
	// error wrapping ErrNotFound.
	Open(name string) (io.ReadCloser, error)

	// ValidateSetup verifies the destination root. When create is true the
	// root is created if needed and must be writable; otherwise an existing
	// root must merely be a directory and nothing is written.
	ValidateSetup(create bool) error
}
