package testutil

import (
	"fmt"
	"io"
	"sync"

	"ibk-go/internal/ibk"
	"ibk-go/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() *vault.MemoryVault {
	return vault.NewMemoryVault()
}

// FailingVault wraps a vault and rejects writes of chosen stored names.
type FailingVault struct {
	ibk.Vault

	mu      sync.Mutex
	putFail map[string]bool
	puts    []string
}

// NewFailingVault wraps v.
func NewFailingVault(v ibk.Vault) *FailingVault {
	return &FailingVault{Vault: v, putFail: make(map[string]bool)}
}

// FailPut makes every Put of name fail after draining the reader.
func (f *FailingVault) FailPut(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putFail[name] = true
}

// Puts returns the names passed to Put so far, in call order.
func (f *FailingVault) Puts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.puts...)
}

func (f *FailingVault) Put(name string, r io.Reader) (int64, error) {
	f.mu.Lock()
	f.puts = append(f.puts, name)
	fail := f.putFail[name]
	f.mu.Unlock()

	if fail {
		io.Copy(io.Discard, r)
		return 0, fmt.Errorf("storing %s: %w", name, ErrInjected)
	}
	return f.Vault.Put(name, r)
}
