package embedded

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

type fakeResource struct {
	out     string
	err     error
	block   chan struct{}
	entered chan struct{}
	infers  atomic.Int32
	closes  atomic.Int32
}

func (r *fakeResource) Infer(ctx context.Context, prompt string, p InferParams) (string, error) {
	r.infers.Add(1)
	if r.entered != nil {
		select {
		case r.entered <- struct{}{}:
		default:
		}
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return r.out, r.err
}

func (r *fakeResource) Close() error {
	r.closes.Add(1)
	return nil
}

type fakeLoader struct {
	res      *fakeResource
	delay    time.Duration
	failures int32
	// stubborn loaders ignore ctx, as llama.New does.
	stubborn  bool
	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
}

func (l *fakeLoader) load(ctx context.Context, spec LoadSpec) (Resource, error) {
	n := l.calls.Add(1)
	cur := l.active.Add(1)
	defer l.active.Add(-1)
	for {
		m := l.maxActive.Load()
		if cur <= m || l.maxActive.CompareAndSwap(m, cur) {
			break
		}
	}
	if l.stubborn {
		time.Sleep(l.delay)
	} else if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= l.failures {
		return nil, errors.New("out of memory")
	}
	return l.res, nil
}

func okResource() *fakeResource {
	return &fakeResource{out: `{"cmd": "ls -la"}`}
}

// writeModel creates a file with a GGUF header in a temp dir.
func writeModel(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, append([]byte("GGUF"), make([]byte, 28)...), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}
