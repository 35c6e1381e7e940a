package ibk

import "errors"

// Fatal conditions abort a run before any work is dispatched.
var (
	// ErrSourceUnreadable means the source root cannot be listed or is not a directory.
	ErrSourceUnreadable = errors.New("source unreadable")

	// ErrDestinationUnwritable means the destination root cannot be created or written.
	ErrDestinationUnwritable = errors.New("destination unwritable")
)

// Per-file conditions are recorded on a BackupResult and never abort a run.
var (
	ErrFileRead  = errors.New("file read error")
	ErrFileWrite = errors.New("file write error")
)

var (
	// ErrManifestCorrupt is returned by a ManifestStore when a persisted manifest cannot be parsed.
	ErrManifestCorrupt = errors.New("manifest corrupt")

	// ErrNotFound is returned by a Vault when a stored copy does not exist.
	ErrNotFound = errors.New("not found")

	// ErrLocked is returned when an encrypted copy is read without an unlocked key.
	ErrLocked = errors.New("encrypted content requires an unlocked key")
)
