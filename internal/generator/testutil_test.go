package generator

import (
	"context"
	"sync/atomic"
	"time"
)

// fakeBackend is a scripted CommandGenerator used by fallback tests.
type fakeBackend struct {
	typ       BackendType
	available bool
	err       error
	nilResult bool
	delay     time.Duration
	calls     atomic.Int32
	probes    atomic.Int32
	shutdowns atomic.Int32
	shutErr   error
}

func (f *fakeBackend) GenerateCommand(ctx context.Context, req CommandRequest) (*GeneratedCommand, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ContextError(ctx, f.delay)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.nilResult {
		return nil, nil
	}
	return &GeneratedCommand{Command: "ls -la", BackendUsed: string(f.typ), Confidence: 0.9}, nil
}

func (f *fakeBackend) IsAvailable(ctx context.Context) bool {
	f.probes.Add(1)
	return f.available
}

func (f *fakeBackend) BackendInfo() BackendInfo {
	return BackendInfo{Type: f.typ, ModelName: "fake", MaxTokens: 10, TypicalLatencyMS: 1}
}

func (f *fakeBackend) Shutdown(ctx context.Context) error {
	f.shutdowns.Add(1)
	return f.shutErr
}

func testCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Second)
}
