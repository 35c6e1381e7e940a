package testutil

import (
	"strings"
	"testing"

	"ibk-go/internal/hasher"
)

// Digest returns the digest of data under algo, failing the test on error.
func Digest(t *testing.T, algo hasher.Algorithm, data string) hasher.Digest {
	t.Helper()
	h, err := hasher.New(algo)
	if err != nil {
		t.Fatalf("hasher.New(%q): %v", algo, err)
	}
	d, err := h.HashReader(strings.NewReader(data))
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	return d
}

// MD5 returns the md5 digest of data.
func MD5(t *testing.T, data string) hasher.Digest {
	t.Helper()
	return Digest(t, hasher.MD5, data)
}
