// Package hasher computes content fingerprints of files.
//
// Files are read in fixed 64 KiB chunks so memory use is independent of file
// size. A digest is tagged with the algorithm that produced it and renders as
// "<algorithm>:<hex>", e.g. "md5:9e107d9d372bb6826bd81d3542a419d6".
package hasher

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ChunkSize is the read size used when streaming file content into a digest.
const ChunkSize = 64 * 1024

// Algorithm names a digest function.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA256 Algorithm = "sha256"
	// XXH64 is fast but not cryptographic. It detects corruption, not tampering.
	XXH64 Algorithm = "xxh64"
)

// DefaultAlgorithm favours speed; SHA256 gives stronger integrity.
const DefaultAlgorithm = MD5

var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// Algorithms lists the supported algorithms.
func Algorithms() []Algorithm {
	return []Algorithm{MD5, SHA256, XXH64}
}

// ParseAlgorithm parses a user-supplied algorithm name. An empty name yields
// DefaultAlgorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return DefaultAlgorithm, nil
	case "md5":
		return MD5, nil
	case "sha256", "sha-256":
		return SHA256, nil
	case "xxh64", "xxhash":
		return XXH64, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case MD5:
		return md5.New(), nil
	case SHA256:
		return sha256.New(), nil
	case XXH64:
		return xxhash.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(a))
	}
}

// hexLen is the length of a hex-encoded digest.
func (a Algorithm) hexLen() int {
	switch a {
	case MD5:
		return md5.Size * 2
	case SHA256:
		return sha256.Size * 2
	case XXH64:
		return 16
	default:
		return 0
	}
}

// Hasher computes digests with a fixed algorithm. It is safe for concurrent use.
type Hasher struct {
	algo Algorithm
}

// New returns a Hasher for algo.
func New(algo Algorithm) (*Hasher, error) {
	if _, err := algo.newHash(); err != nil {
		return nil, err
	}
	return &Hasher{algo: algo}, nil
}

// Algorithm returns the algorithm this Hasher uses.
func (h *Hasher) Algorithm() Algorithm {
	return h.algo
}

// HashFile returns the digest of the full content of the file at path.
func (h *Hasher) HashFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	d, err := h.HashReader(f)
	if err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	return d, nil
}

// HashReader returns the digest of everything read from r.
func (h *Hasher) HashReader(r io.Reader) (Digest, error) {
	w := h.NewWriter()
	buf := make([]byte, ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			w.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Digest{}, fmt.Errorf("reading content: %w", err)
		}
	}
	return w.Digest(), nil
}

// NewWriter returns a Writer that digests everything written to it.
// Use it with io.TeeReader to fingerprint content while it is copied.
func (h *Hasher) NewWriter() *Writer {
	hh, _ := h.algo.newHash()
	return &Writer{algo: h.algo, h: hh}
}

// Writer is an io.Writer that accumulates a digest.
type Writer struct {
	algo Algorithm
	h    hash.Hash
}

func (w *Writer) Write(p []byte) (int, error) {
	return w.h.Write(p)
}

// Digest returns the digest of everything written so far.
func (w *Writer) Digest() Digest {
	return Digest{Algorithm: w.algo, Hex: hex.EncodeToString(w.h.Sum(nil))}
}
