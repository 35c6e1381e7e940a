package ibk

import (
	"errors"
	"fmt"
	"io"
)

// pipeThrough runs fn(r, w) in a goroutine and returns the read side of w.
// Closing the returned reader unblocks fn if the consumer stops early.
func pipeThrough(r io.Reader, fn func(io.Reader, io.Writer) error) *io.PipeReader {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(fn(r, pw))
	}()
	return pr
}

// stack is a chain of readers closed outermost first.
type stack struct {
	io.Reader
	closers []io.Closer
}

func (s *stack) push(fn func(io.Reader, io.Writer) error) {
	pr := pipeThrough(s.Reader, fn)
	s.closers = append(s.closers, pr)
	s.Reader = pr
}

func (s *stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// taggedReader marks read errors of the underlying reader with tag so they
// stay distinguishable after passing through codecs and pipes.
type taggedReader struct {
	r   io.Reader
	tag error
}

func (t *taggedReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%w: %w", t.tag, err)
	}
	return n, err
}

// sourceReader streams a source file into a digest and counts bytes.
// At EOF it calls atEOF, whose error replaces EOF so a consumer such as
// Vault.Put discards what it has written.
type sourceReader struct {
	r     io.Reader
	w     io.Writer
	n     int64
	atEOF func(n int64) error
	done  bool
}

func (s *sourceReader) Read(p []byte) (int, error) {
	if s.done {
		return 0, io.EOF
	}
	n, err := s.r.Read(p)
	if n > 0 {
		s.w.Write(p[:n])
		s.n += int64(n)
	}
	if err == io.EOF {
		if s.atEOF != nil {
			if cerr := s.atEOF(s.n); cerr != nil {
				return n, cerr
			}
		}
		s.done = true
	} else if err != nil {
		err = fmt.Errorf("%w: %w", ErrFileRead, err)
	}
	return n, err
}
