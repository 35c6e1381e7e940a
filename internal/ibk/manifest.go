package ibk

import (
	"sort"
	"strings"
	"time"

	"ibk-go/internal/hasher"
)

// ManifestVersion is the on-disk format version written by this build.
const ManifestVersion = 1

// DefaultManifestName is the file name of the manifest inside the destination root.
const DefaultManifestName = ".backup_manifest.json"

// Suffixes appended to the stored name of a transformed copy.
const (
	CompressedSuffix = ".gz"
	EncryptedSuffix  = ".age"
)

// ToolVersion is recorded in every manifest this build writes.
var ToolVersion = "0.1.0"

// ManifestEntry is the last-known state of one backed-up file.
type ManifestEntry struct {
	RelativePath string
	Size         int64
	ModTime      time.Time
	// ContentHash fingerprints the source bytes that were streamed into the
	// stored copy, so it always matches the Size and ModTime recorded alongside it.
	ContentHash hasher.Digest
	Compressed  bool
	Encrypted   bool
	BackedUpAt  time.Time
}

// StoredName is the name of the stored copy relative to the destination root.
func (e *ManifestEntry) StoredName() string {
	return StoredName(e.RelativePath, e.Compressed, e.Encrypted)
}

// StoredName derives the stored copy name for a source relative path.
func StoredName(relativePath string, compressed, encrypted bool) string {
	name := relativePath
	if compressed {
		name += CompressedSuffix
	}
	if encrypted {
		name += EncryptedSuffix
	}
	return name
}

// Manifest is the persisted state of a backup destination.
type Manifest struct {
	Version         int
	BackupID        string
	SourceRoot      string
	DestinationRoot string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Algorithm       hasher.Algorithm
	ToolVersion     string

	entries map[string]*ManifestEntry
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		Version: ManifestVersion,
		entries: make(map[string]*ManifestEntry),
	}
}

// IsNew reports whether the manifest has never been persisted.
func (m *Manifest) IsNew() bool {
	return m.CreatedAt.IsZero()
}

// Get returns the entry for a relative path, or nil.
func (m *Manifest) Get(relativePath string) *ManifestEntry {
	return m.entries[relativePath]
}

// Put inserts or replaces an entry.
func (m *Manifest) Put(e *ManifestEntry) {
	m.entries[e.RelativePath] = e
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// Paths returns all relative paths in lexical order.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.entries))
	for p := range m.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Entries returns all entries ordered by relative path.
func (m *Manifest) Entries() []*ManifestEntry {
	paths := m.Paths()
	out := make([]*ManifestEntry, len(paths))
	for i, p := range paths {
		out[i] = m.entries[p]
	}
	return out
}

// Select returns the entries at or below prefix, ordered by relative path.
// An empty prefix selects everything.
func (m *Manifest) Select(prefix string) []*ManifestEntry {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" || prefix == "." {
		return m.Entries()
	}
	var out []*ManifestEntry
	for _, e := range m.Entries() {
		if e.RelativePath == prefix || strings.HasPrefix(e.RelativePath, prefix+"/") {
			out = append(out, e)
		}
	}
	return out
}

// withHeader returns an empty manifest sharing m's session metadata.
func (m *Manifest) withHeader() *Manifest {
	next := NewManifest()
	next.BackupID = m.BackupID
	next.SourceRoot = m.SourceRoot
	next.DestinationRoot = m.DestinationRoot
	next.CreatedAt = m.CreatedAt
	next.UpdatedAt = m.UpdatedAt
	next.Algorithm = m.Algorithm
	next.ToolVersion = m.ToolVersion
	return next
}

// ManifestStore loads and persists manifests.
type ManifestStore interface {
	// Load parses the manifest at path. A missing file yields an empty
	// manifest and no error. An unparsable file yields an error wrapping
	// ErrManifestCorrupt.
	Load(path string) (*Manifest, error)

	// Save persists m at path atomically: readers observe either the
	// previous manifest or the new one, never a partial write.
	Save(m *Manifest, path string) error

	// Quarantine moves an unusable manifest aside so a fresh one can be
	// written, and returns the path it was moved to.
	Quarantine(path string) (string, error)
}
