package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestIBKHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "backup finished",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123\tbackup finished\n",
		},
		{
			name:    "debug level",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "file unchanged",
			want:    "2024-06-15T14:30:45Z\tDEBUG\top-456\tfile unchanged\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelWarn,
			message: "file failed",
			attrs:   []slog.Attr{slog.String("path", "docs/file.txt"), slog.Int("size", 42)},
			want:    "2024-06-15T14:30:45Z\tWARN\top-789\tfile failed\tpath=docs/file.txt\tsize=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := newIBKHandler(&buf, slog.LevelDebug, tt.opID)

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			r.AddAttrs(tt.attrs...)

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestIBKHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := newIBKHandler(&buf, nil, "op-1")

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "vault")}).(*ibkHandler)

	r := slog.NewRecord(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), slog.LevelInfo, "put", 0)
	r.AddAttrs(slog.String("key", "abc"))
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "\tcomponent=vault\tkey=abc\n") {
		t.Errorf("expected pre-set attrs before record attrs, got: %q", got)
	}
	if len(h.attrs) != 0 {
		t.Errorf("original handler attrs modified: got %d, want 0", len(h.attrs))
	}
}

func TestIBKHandler_Enabled(t *testing.T) {
	tests := []struct {
		name  string
		level slog.Leveler
		check slog.Level
		want  bool
	}{
		{"default threshold drops debug", nil, slog.LevelDebug, false},
		{"default threshold keeps info", nil, slog.LevelInfo, true},
		{"debug threshold keeps debug", slog.LevelDebug, slog.LevelDebug, true},
		{"warn threshold drops info", slog.LevelWarn, slog.LevelInfo, false},
		{"warn threshold keeps error", slog.LevelWarn, slog.LevelError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newIBKHandler(nil, tt.level, "")
			if got := h.Enabled(context.Background(), tt.check); got != tt.want {
				t.Errorf("Enabled(%v) = %v, want %v", tt.check, got, tt.want)
			}
		})
	}
}

func TestIBKHandler_ConcurrentLinesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newIBKHandler(&buf, nil, "op"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("copied", "path", "a/b/c.txt", "bytes", 1024)
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 20 {
		t.Fatalf("got %d lines, want 20", len(lines))
	}
	for _, l := range lines {
		if !strings.HasSuffix(l, "\tpath=a/b/c.txt\tbytes=1024") {
			t.Errorf("interleaved line: %q", l)
		}
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("quiet writes info to file only", func(t *testing.T) {
		dir := t.TempDir()
		var stderr bytes.Buffer

		logger, f, err := newLogger(dir, "test-op", false, &stderr)
		if err != nil {
			t.Fatalf("newLogger() error = %v", err)
		}
		logger.Debug("hidden")
		logger.Info("shown")
		f.Close()

		data, err := os.ReadFile(filepath.Join(dir, LogFile))
		if err != nil {
			t.Fatalf("reading log: %v", err)
		}
		if strings.Contains(string(data), "hidden") {
			t.Error("debug record written without verbose")
		}
		if !strings.Contains(string(data), "\ttest-op\tshown") {
			t.Errorf("log file = %q", data)
		}
		if stderr.Len() != 0 {
			t.Errorf("stderr = %q, want empty", stderr.String())
		}
	})

	t.Run("verbose mirrors to stderr", func(t *testing.T) {
		dir := t.TempDir()
		var stderr bytes.Buffer

		logger, f, err := newLogger(dir, "test-op", true, &stderr)
		if err != nil {
			t.Fatalf("newLogger() error = %v", err)
		}
		defer f.Close()
		logger.Debug("detail")

		if !strings.Contains(stderr.String(), "DEBUG\ttest-op\tdetail") {
			t.Errorf("stderr = %q", stderr.String())
		}
	})
}
