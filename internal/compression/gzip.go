// Package compression provides the codecs applied to stored copies.
package compression

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"ibk-go/internal/ibk"
)

// GzipCompressor compresses stored copies with gzip.
type GzipCompressor struct {
	level int
}

// NewGzipCompressor returns a compressor using the given gzip level.
// Level 0 selects gzip.DefaultCompression.
func NewGzipCompressor(level int) (*GzipCompressor, error) {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		return nil, fmt.Errorf("invalid gzip level: %d", level)
	}
	return &GzipCompressor{level: level}, nil
}

// Compress reads r and writes a gzip stream to w.
func (c *GzipCompressor) Compress(r io.Reader, w io.Writer) error {
	zw, err := gzip.NewWriterLevel(w, c.level)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := io.Copy(zw, r); err != nil {
		zw.Close()
		return fmt.Errorf("compressing: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing gzip stream: %w", err)
	}
	return nil
}

// Decompress reads a gzip stream from r and writes the plain bytes to w.
func (c *GzipCompressor) Decompress(r io.Reader, w io.Writer) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("reading gzip header: %w", err)
	}
	defer zr.Close()
	if _, err := io.Copy(w, zr); err != nil {
		return fmt.Errorf("decompressing: %w", err)
	}
	return nil
}

var _ ibk.Compressor = (*GzipCompressor)(nil)
