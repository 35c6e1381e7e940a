package compression

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/klauspost/compress/gzip"
)

func TestNewGzipCompressor(t *testing.T) {
	tests := []struct {
		name    string
		level   int
		wantErr bool
	}{
		{name: "default", level: 0},
		{name: "best speed", level: gzip.BestSpeed},
		{name: "best compression", level: gzip.BestCompression},
		{name: "too high", level: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGzipCompressor(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewGzipCompressor(%d) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
}

func TestGzipCompressor_RoundTrip(t *testing.T) {
	c, err := NewGzipCompressor(0)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "short text", data: []byte("hello world")},
		{name: "repetitive", data: bytes.Repeat([]byte("abcdefgh"), 64*1024)},
		{name: "binary", data: func() []byte {
			b := make([]byte, 256*1024)
			for i := range b {
				b[i] = byte(i * 31 % 251)
			}
			return b
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var packed bytes.Buffer
			if err := c.Compress(bytes.NewReader(tt.data), &packed); err != nil {
				t.Fatalf("Compress() error = %v", err)
			}

			// The stored copy is a standard gzip stream.
			zr, err := gzip.NewReader(bytes.NewReader(packed.Bytes()))
			if err != nil {
				t.Fatalf("stored copy is not gzip: %v", err)
			}
			zr.Close()

			var unpacked bytes.Buffer
			if err := c.Decompress(iotest.HalfReader(&packed), &unpacked); err != nil {
				t.Fatalf("Decompress() error = %v", err)
			}
			if !bytes.Equal(unpacked.Bytes(), tt.data) {
				t.Errorf("round trip changed content: got %d bytes, want %d", unpacked.Len(), len(tt.data))
			}
		})
	}

	t.Run("repetitive data shrinks", func(t *testing.T) {
		data := strings.Repeat("0123456789", 10000)
		var packed bytes.Buffer
		if err := c.Compress(strings.NewReader(data), &packed); err != nil {
			t.Fatal(err)
		}
		if packed.Len() >= len(data)/10 {
			t.Errorf("compressed size %d, want well under %d", packed.Len(), len(data))
		}
	})
}

func TestGzipCompressor_Errors(t *testing.T) {
	c, err := NewGzipCompressor(0)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("read error is wrapped", func(t *testing.T) {
		readErr := errors.New("disk on fire")
		err := c.Compress(io.MultiReader(strings.NewReader("abc"), iotest.ErrReader(readErr)), io.Discard)
		if !errors.Is(err, readErr) {
			t.Errorf("Compress() error = %v, want wrapping %v", err, readErr)
		}
	})

	t.Run("not gzip", func(t *testing.T) {
		if err := c.Decompress(strings.NewReader("plain text"), io.Discard); err == nil {
			t.Error("Decompress() expected error for non-gzip input")
		}
	})

	t.Run("truncated stream", func(t *testing.T) {
		var packed bytes.Buffer
		if err := c.Compress(strings.NewReader(strings.Repeat("x", 10000)), &packed); err != nil {
			t.Fatal(err)
		}
		truncated := packed.Bytes()[:packed.Len()/2]
		if err := c.Decompress(bytes.NewReader(truncated), io.Discard); err == nil {
			t.Error("Decompress() expected error for truncated stream")
		}
	})
}
