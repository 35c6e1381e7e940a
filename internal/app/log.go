package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// LogFile is the name of the log file inside the configured log directory.
const LogFile = "ibk.log"

// ibkHandler is a slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<opID>\t<message>\t<key=value ...>
//
// Records are written whole under a mutex because workers log concurrently.
type ibkHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Leveler
	opID  string
	attrs []slog.Attr
}

func newIBKHandler(w io.Writer, level slog.Leveler, opID string) *ibkHandler {
	return &ibkHandler{mu: &sync.Mutex{}, w: w, level: level, opID: opID}
}

func (h *ibkHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.level != nil {
		threshold = h.level.Level()
	}
	return level >= threshold
}

func (h *ibkHandler) Handle(_ context.Context, r slog.Record) error {
	line := fmt.Sprintf("%s\t%s\t%s\t%s",
		r.Time.UTC().Format("2006-01-02T15:04:05Z"), r.Level, h.opID, r.Message)

	for _, a := range h.attrs {
		line += fmt.Sprintf("\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		line += fmt.Sprintf("\t%s=%v", a.Key, a.Value)
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.w, line)
	return err
}

func (h *ibkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ibkHandler{
		mu:    h.mu,
		w:     h.w,
		level: h.level,
		opID:  h.opID,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *ibkHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger writing to logDir/ibk.log and, when
// verbose, to stderr as well. Debug records are only emitted when verbose.
// It returns the open log file so the caller can close it.
func newLogger(logDir, opID string, verbose bool, stderr io.Writer) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(logDir, LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	var w io.Writer = f
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
		if stderr != nil {
			w = io.MultiWriter(f, stderr)
		}
	}
	return slog.New(newIBKHandler(w, level, opID)), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the ibk.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
