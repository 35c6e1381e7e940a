package vault

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"ibk-go/internal/ibk"
)

func TestMemoryVault_PutAndOpen(t *testing.T) {
	vault := NewMemoryVault()

	tests := []struct {
		name    string
		stored  string
		content string
	}{
		{name: "store and retrieve content", stored: "a.txt", content: "hello world"},
		{name: "store empty content", stored: "empty", content: ""},
		{name: "store large content", stored: "dir/large.gz", content: strings.Repeat("x", 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := vault.Put(tt.stored, strings.NewReader(tt.content))
			if err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if n != int64(len(tt.content)) {
				t.Errorf("Put() = %d, want %d", n, len(tt.content))
			}

			rc, err := vault.Open(tt.stored)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer rc.Close()
			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("reading: %v", err)
			}
			if string(got) != tt.content {
				t.Errorf("content = %q, want %q", got, tt.content)
			}
		})
	}
}

func TestMemoryVault_PutOverwrites(t *testing.T) {
	vault := NewMemoryVault()

	if _, err := vault.Put("a.txt", strings.NewReader("first")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := vault.Put("a.txt", strings.NewReader("second")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := vault.Bytes("a.txt")
	if !ok || string(got) != "second" {
		t.Errorf("Bytes() = %q, %v; want %q", got, ok, "second")
	}
}

func TestMemoryVault_PutFailureKeepsPrevious(t *testing.T) {
	vault := NewMemoryVault()

	if _, err := vault.Put("a.txt", strings.NewReader("original")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	readErr := errors.New("boom")
	if _, err := vault.Put("a.txt", iotest.ErrReader(readErr)); !errors.Is(err, readErr) {
		t.Fatalf("Put() error = %v, want %v", err, readErr)
	}

	got, _ := vault.Bytes("a.txt")
	if string(got) != "original" {
		t.Errorf("content = %q, want %q", got, "original")
	}
}

func TestMemoryVault_OpenNotFound(t *testing.T) {
	vault := NewMemoryVault()

	_, err := vault.Open("missing")
	if !errors.Is(err, ibk.ErrNotFound) {
		t.Errorf("Open() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryVault_DeleteAndNames(t *testing.T) {
	vault := NewMemoryVault()
	for _, name := range []string{"b", "a", "c/d"} {
		if _, err := vault.Put(name, strings.NewReader(name)); err != nil {
			t.Fatalf("Put(%q) error = %v", name, err)
		}
	}

	vault.Delete("b")

	got := strings.Join(vault.Names(), ",")
	if got != "a,c/d" {
		t.Errorf("Names() = %q, want %q", got, "a,c/d")
	}
}
