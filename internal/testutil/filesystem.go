package testutil

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"ibk-go/internal/fs"
	"ibk-go/internal/ibk"
)

// ErrInjected is the error returned by injected failures.
var ErrInjected = errors.New("injected failure")

// FailingFilesystem wraps the OS filesystem manager and injects failures
// for chosen files, identified by the slash-separated suffix of their path.
type FailingFilesystem struct {
	ibk.FilesystemManager

	mu sync.Mutex
	// openFail makes Open fail.
	openFail map[string]bool
	// readFail makes reads fail after the given number of bytes.
	readFail map[string]int
	// onOpen runs after a file is opened, before its first read.
	onOpen map[string]func()
	opened []string
}

// NewFailingFilesystem wraps a fresh OSFilesystemManager.
func NewFailingFilesystem() *FailingFilesystem {
	return &FailingFilesystem{
		FilesystemManager: fs.NewOSFilesystemManager(),
		openFail:          make(map[string]bool),
		readFail:          make(map[string]int),
		onOpen:            make(map[string]func()),
	}
}

// FailOpen makes opening any file ending in suffix fail.
func (f *FailingFilesystem) FailOpen(suffix string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openFail[suffix] = true
}

// FailReadAfter makes reading a file ending in suffix fail after n bytes.
func (f *FailingFilesystem) FailReadAfter(suffix string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readFail[suffix] = n
}

// OnOpen runs fn once a file ending in suffix has been opened.
func (f *FailingFilesystem) OnOpen(suffix string, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onOpen[suffix] = fn
}

// Opened returns the slash-separated paths opened so far.
func (f *FailingFilesystem) Opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

func (f *FailingFilesystem) Open(path string) (io.ReadCloser, error) {
	p := filepath.ToSlash(path)

	f.mu.Lock()
	f.opened = append(f.opened, p)
	var (
		failOpen  bool
		failAfter = -1
		hook      func()
	)
	for suffix := range f.openFail {
		if strings.HasSuffix(p, suffix) {
			failOpen = true
		}
	}
	for suffix, n := range f.readFail {
		if strings.HasSuffix(p, suffix) {
			failAfter = n
		}
	}
	for suffix, fn := range f.onOpen {
		if strings.HasSuffix(p, suffix) {
			hook = fn
		}
	}
	f.mu.Unlock()

	if failOpen {
		return nil, ErrInjected
	}
	rc, err := f.FilesystemManager.Open(path)
	if err != nil {
		return nil, err
	}
	if hook != nil {
		hook()
	}
	if failAfter >= 0 {
		return &failingReader{ReadCloser: rc, left: failAfter}, nil
	}
	return rc, nil
}

type failingReader struct {
	io.ReadCloser
	left int
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.left <= 0 {
		return 0, ErrInjected
	}
	if len(p) > r.left {
		p = p[:r.left]
	}
	n, err := r.ReadCloser.Read(p)
	r.left -= n
	return n, err
}

var _ ibk.FilesystemManager = (*FailingFilesystem)(nil)
