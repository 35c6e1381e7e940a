package ibk

import (
	"io"
	"iter"
)

// ExcludeFunc reports whether a relative path should be left out of a walk.
// Directories for which it returns true are not descended into.
type ExcludeFunc func(relativePath string, isDir bool) bool

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access to enable testing without touching the real filesystem.
type FilesystemManager interface {
	// Resolve converts a raw path to a cleaned absolute path.
	Resolve(rawPath string) (string, error)

	// Stat returns fresh metadata for a path. RelativePath is left empty.
	Stat(path string) (Entry, error)

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Walk lazily yields the entries under root in traversal order.
	// Only directories and regular files are yielded; the root itself is not.
	// Excluded entries are never yielded and excluded directories are never read.
	// A directory that cannot be read yields its Entry together with the error
	// and the walk continues with its siblings. An unreadable root yields an
	// Entry with an empty RelativePath.
	Walk(root string, exclude ExcludeFunc) iter.Seq2[Entry, error]
}
