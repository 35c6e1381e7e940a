package vault

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"

	"ibk-go/internal/ibk"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// It is useful for testing and is safe for concurrent use.
type MemoryVault struct {
	copies map[string][]byte
	mu     sync.RWMutex
}

// NewMemoryVault creates a new, empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{copies: make(map[string][]byte)}
}

// Put stores the content read from r. Nothing is stored if reading fails.
func (m *MemoryVault) Put(name string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read content: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.copies[name] = data
	return int64(len(data)), nil
}

// Open returns a reader over a copy of the stored bytes.
func (m *MemoryVault) Open(name string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.copies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ibk.ErrNotFound, name)
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup(bool) error {
	return nil
}

// Delete removes a stored copy.
func (m *MemoryVault) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.copies, name)
}

// Bytes returns the stored bytes for name.
func (m *MemoryVault) Bytes(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.copies[name]
	return bytes.Clone(data), ok
}

// Names returns the names of all stored copies in lexical order.
func (m *MemoryVault) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.copies))
	for n := range m.copies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Compile-time check that MemoryVault implements ibk.Vault interface
var _ ibk.Vault = (*MemoryVault)(nil)
