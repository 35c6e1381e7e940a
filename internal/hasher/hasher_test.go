package hasher

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		input   string
		want    Algorithm
		wantErr bool
	}{
		{input: "", want: MD5},
		{input: "md5", want: MD5},
		{input: "MD5", want: MD5},
		{input: "sha256", want: SHA256},
		{input: "SHA-256", want: SHA256},
		{input: "xxh64", want: XXH64},
		{input: "xxhash", want: XXH64},
		{input: "crc32", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownAlgorithm) {
					t.Fatalf("ParseAlgorithm(%q) error = %v, want ErrUnknownAlgorithm", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAlgorithm(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAlgorithm(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestHasher_KnownDigests(t *testing.T) {
	// "The quick brown fox jumps over the lazy dog"
	input := []byte("The quick brown fox jumps over the lazy dog")
	tests := []struct {
		algo Algorithm
		want string
	}{
		{algo: MD5, want: "9e107d9d372bb6826bd81d3542a419d6"},
		{algo: SHA256, want: "d7a8fbb307d7809469ca9abcb0082e4f8d5651e46d3cdb762d02d0bf37c9e592"},
		{algo: XXH64, want: "0b242d361fda71bc"},
	}

	for _, tt := range tests {
		t.Run(string(tt.algo), func(t *testing.T) {
			h, err := New(tt.algo)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			d, err := h.HashReader(bytes.NewReader(input))
			if err != nil {
				t.Fatalf("HashReader() error = %v", err)
			}
			if d.Hex != tt.want {
				t.Errorf("Hex = %s, want %s", d.Hex, tt.want)
			}
			if d.Algorithm != tt.algo {
				t.Errorf("Algorithm = %s, want %s", d.Algorithm, tt.algo)
			}
		})
	}
}

func TestHasher_ChunkBoundariesDoNotMatter(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), (3*ChunkSize)/16+7)

	for _, algo := range Algorithms() {
		t.Run(string(algo), func(t *testing.T) {
			h, _ := New(algo)

			whole, err := h.HashReader(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("HashReader() error = %v", err)
			}
			oneByte, err := h.HashReader(iotest.OneByteReader(bytes.NewReader(data)))
			if err != nil {
				t.Fatalf("HashReader(one byte) error = %v", err)
			}
			half, err := h.HashReader(iotest.HalfReader(bytes.NewReader(data)))
			if err != nil {
				t.Fatalf("HashReader(half) error = %v", err)
			}

			w := h.NewWriter()
			io.Copy(w, bytes.NewReader(data))
			streamed := w.Digest()

			for name, d := range map[string]Digest{"one byte": oneByte, "half": half, "writer": streamed} {
				if !d.Equal(whole) {
					t.Errorf("%s digest = %s, want %s", name, d, whole)
				}
			}
		})
	}
}

func TestHasher_HashFile(t *testing.T) {
	t.Run("matches HashReader", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file.bin")
		data := bytes.Repeat([]byte{0xAB}, ChunkSize+1)
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatalf("writing file: %v", err)
		}

		h, _ := New(SHA256)
		fromFile, err := h.HashFile(path)
		if err != nil {
			t.Fatalf("HashFile() error = %v", err)
		}
		fromReader, _ := h.HashReader(bytes.NewReader(data))
		if !fromFile.Equal(fromReader) {
			t.Errorf("HashFile() = %s, want %s", fromFile, fromReader)
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		h, _ := New(MD5)
		_, err := h.HashFile(filepath.Join(t.TempDir(), "missing"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("HashFile() error = %v, want ErrNotExist", err)
		}
	})

	t.Run("read failure mid-stream is an error", func(t *testing.T) {
		h, _ := New(MD5)
		boom := errors.New("boom")
		r := io.MultiReader(bytes.NewReader([]byte("partial")), iotest.ErrReader(boom))
		if _, err := h.HashReader(r); !errors.Is(err, boom) {
			t.Errorf("HashReader() error = %v, want %v", err, boom)
		}
	})
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	if _, err := New("crc32"); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("New() error = %v, want ErrUnknownAlgorithm", err)
	}
}
