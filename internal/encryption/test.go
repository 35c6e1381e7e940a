package encryption

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"

	"ibk-go/internal/ibk"
)

// testHeader marks stored copies written by TestEncryptor.
var testHeader = []byte("IBKTEST\x00")

// TestEncryptor is a deterministic stand-in for AgeEncryptor. Encrypt prepends
// a fixed header and Decrypt strips it, so stored copies differ from the
// source bytes without any key material. If a passphrase was given to Setup,
// Unlock insists on the same one.
type TestEncryptor struct {
	passphrase string
	setup      atomic.Bool
	encrypted  atomic.Int64
}

var _ ibk.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.passphrase = passphrase
	e.setup.Store(true)
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	e.encrypted.Add(1)
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (ibk.DecryptionContext, error) {
	if e.setup.Load() && e.passphrase != "" && passphrase != e.passphrase {
		return nil, ErrWrongPassphrase
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// Encrypted returns how many streams have been encrypted.
func (e *TestEncryptor) Encrypted() int64 {
	return e.encrypted.Load()
}

// TestDecryptionContext strips the test header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ ibk.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
