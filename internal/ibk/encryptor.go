package ibk

import "io"

// Encryptor seals stored copies for a destination. Sealing needs only the
// public key, so unattended backups never ask for a passphrase; opening a
// sealed copy during verify or restore needs the private key, which Unlock
// decrypts with the user's passphrase.
type Encryptor interface {
	// Setup generates the key pair: the public key in plaintext and the
	// private key sealed under passphrase.
	Setup(passphrase string) error

	// Encrypt seals the bytes from r into w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock opens the private key. A wrong passphrase is an error.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds the unlocked private key for one verify or restore.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
