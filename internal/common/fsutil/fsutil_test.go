package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	for _, raw := range []string{"/tmp/model.gguf", ""} {
		if got, err := ExpandHome(raw); err != nil || got != raw {
			t.Fatalf("%q: got %q err=%v", raw, got, err)
		}
	}
	if p, err := ExpandHome("~"); err != nil || p != home {
		t.Fatalf("expected %q, got %q err=%v", home, p, err)
	}
	exp, err := ExpandHome("~/models/q4.gguf")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if filepath.Base(exp) != "q4.gguf" || filepath.Dir(filepath.Dir(exp)) != home {
		t.Fatalf("unexpected expanded path: %q", exp)
	}
}

func TestReadHead(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full.bin")
	if err := os.WriteFile(full, []byte("GGUFrest"), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := ReadHead(full, 4)
	if err != nil || string(b) != "GGUF" {
		t.Fatalf("got %q err=%v", b, err)
	}

	short := filepath.Join(dir, "short.bin")
	if err := os.WriteFile(short, []byte("GG"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadHead(short, 4); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("short file: %v", err)
	}
	if _, err := ReadHead(dir, 4); !errors.Is(err, ErrNotRegular) {
		t.Fatalf("directory: %v", err)
	}
	if _, err := ReadHead(filepath.Join(dir, "missing"), 4); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing: %v", err)
	}
}
