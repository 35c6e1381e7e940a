package ibk

import "io"

// Compressor encodes and decodes compressed stored copies.
type Compressor interface {
	Compress(r io.Reader, w io.Writer) error
	Decompress(r io.Reader, w io.Writer) error
}
