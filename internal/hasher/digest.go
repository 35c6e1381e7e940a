package hasher

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Digest is an algorithm-tagged content fingerprint.
type Digest struct {
	Algorithm Algorithm
	Hex       string
}

// ParseDigest parses the "<algorithm>:<hex>" form produced by Digest.String.
func ParseDigest(s string) (Digest, error) {
	name, value, ok := strings.Cut(s, ":")
	if !ok {
		return Digest{}, fmt.Errorf("digest %q has no algorithm tag", s)
	}
	algo, err := ParseAlgorithm(name)
	if err != nil || name == "" {
		return Digest{}, fmt.Errorf("digest %q: %w", s, ErrUnknownAlgorithm)
	}
	if len(value) != algo.hexLen() {
		return Digest{}, fmt.Errorf("digest %q: want %d hex characters, got %d", s, algo.hexLen(), len(value))
	}
	if _, err := hex.DecodeString(value); err != nil {
		return Digest{}, fmt.Errorf("digest %q: %w", s, err)
	}
	return Digest{Algorithm: algo, Hex: strings.ToLower(value)}, nil
}

func (d Digest) String() string {
	if d.IsZero() {
		return ""
	}
	return string(d.Algorithm) + ":" + d.Hex
}

// IsZero reports whether d holds no digest.
func (d Digest) IsZero() bool {
	return d.Hex == ""
}

// Equal reports whether both digests were produced by the same algorithm
// over the same content. Digests of different algorithms are never equal.
func (d Digest) Equal(other Digest) bool {
	return d.Algorithm == other.Algorithm && d.Hex == other.Hex && !d.IsZero()
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Digest{}
		return nil
	}
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
