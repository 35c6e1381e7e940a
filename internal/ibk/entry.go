package ibk

import "time"

// Entry is the metadata of one filesystem entry as seen by a walk.
// It is passed by value so change detection never depends on the shape
// of the stat record a particular traversal primitive produces.
type Entry struct {
	// RelativePath is slash-separated and relative to the walk root.
	// It is empty for the root itself.
	RelativePath string
	Size         int64
	ModTime      time.Time
	IsDir        bool
}

// SameMetadata reports whether size and modification time are identical.
func (e Entry) SameMetadata(other Entry) bool {
	return e.Size == other.Size && e.ModTime.Equal(other.ModTime)
}
