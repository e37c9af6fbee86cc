package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFallbackRejectsEmptyAndNil(t *testing.T) {
	_, err := NewFallback(nil)
	require.Error(t, err)
	_, err = NewFallback([]CommandGenerator{nil})
	require.Error(t, err)
}

func TestFallbackSkipsUnavailableBackend(t *testing.T) {
	remote := &fakeBackend{typ: BackendRemote, available: false}
	embedded := &fakeBackend{typ: BackendEmbedded, available: true}
	pub := NewMemoryPublisher()
	f, err := NewFallback([]CommandGenerator{remote, embedded}, WithFallbackPublisher(pub))
	require.NoError(t, err)

	ctx, cancel := testCtx()
	defer cancel()
	cmd, err := f.GenerateCommand(ctx, NewRequest("list files", ShellBash))
	require.NoError(t, err)
	assert.Equal(t, "embedded", cmd.BackendUsed)
	assert.Equal(t, int32(0), remote.calls.Load(), "unavailable backend must not be asked to generate")
	assert.Equal(t, []string{"generate_ok"}, pub.Names())
	assert.NotEmpty(t, pub.Events()[0].ID)
}

func TestFallbackMovesOnAfterFailure(t *testing.T) {
	remote := &fakeBackend{typ: BackendRemote, available: true, err: ErrTimeout(time.Second, nil)}
	embedded := &fakeBackend{typ: BackendEmbedded, available: true}
	f, err := NewFallback([]CommandGenerator{remote, embedded})
	require.NoError(t, err)

	ctx, cancel := testCtx()
	defer cancel()
	cmd, err := f.GenerateCommand(ctx, NewRequest("list files", ShellZsh))
	require.NoError(t, err)
	assert.Equal(t, "embedded", cmd.BackendUsed)
	assert.Equal(t, int32(1), remote.calls.Load())
	assert.Equal(t, int32(1), embedded.calls.Load())
}

func TestFallbackStopsAtFirstSuccess(t *testing.T) {
	first := &fakeBackend{typ: BackendRemote, available: true}
	second := &fakeBackend{typ: BackendEmbedded, available: true}
	f, err := NewFallback([]CommandGenerator{first, second})
	require.NoError(t, err)

	ctx, cancel := testCtx()
	defer cancel()
	cmd, err := f.GenerateCommand(ctx, NewRequest("show disk usage", ShellBash))
	require.NoError(t, err)
	assert.Equal(t, "remote", cmd.BackendUsed)
	assert.Equal(t, int32(0), second.calls.Load())
	assert.Equal(t, int32(0), second.probes.Load())
}

func TestFallbackExhaustedSurfacesLastError(t *testing.T) {
	remote := &fakeBackend{typ: BackendRemote, available: false}
	embedded := &fakeBackend{typ: BackendEmbedded, available: true,
		err: ErrModelLoad("/models/missing.gguf", "model file not found", true, nil)}
	pub := NewMemoryPublisher()
	f, err := NewFallback([]CommandGenerator{remote, embedded}, WithFallbackPublisher(pub))
	require.NoError(t, err)

	ctx, cancel := testCtx()
	defer cancel()
	cmd, err := f.GenerateCommand(ctx, NewRequest("list files", ShellBash))
	require.Nil(t, cmd)
	require.Error(t, err)

	var ex *ExhaustedError
	require.True(t, errors.As(err, &ex))
	require.Len(t, ex.Attempts, 2)
	assert.True(t, ex.Attempts[0].Skipped)
	assert.Equal(t, "embedded", ex.Last().Backend)
	assert.True(t, IsModelLoad(err), "kind of the last backend must be visible")
	assert.Contains(t, err.Error(), "embedded: model load error")
	assert.Contains(t, err.Error(), "missing.gguf")
	assert.Equal(t, []string{"generate_fail"}, pub.Names())
}

func TestFallbackRejectsInvalidRequestWithoutTryingBackends(t *testing.T) {
	b := &fakeBackend{typ: BackendEmbedded, available: true}
	f, err := NewFallback([]CommandGenerator{b})
	require.NoError(t, err)

	_, err = f.GenerateCommand(context.Background(), NewRequest("   ", ShellBash))
	require.Error(t, err)
	assert.True(t, IsInvalidRequest(err))
	assert.Equal(t, int32(0), b.calls.Load())
	assert.Equal(t, int32(0), b.probes.Load())
}

func TestFallbackHonorsCanceledContext(t *testing.T) {
	b := &fakeBackend{typ: BackendEmbedded, available: true}
	f, err := NewFallback([]CommandGenerator{b})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.GenerateCommand(ctx, NewRequest("list files", ShellBash))
	require.Error(t, err)
	assert.Equal(t, int32(0), b.calls.Load())
}

func TestFallbackRecoversFromSlowPrimary(t *testing.T) {
	slow := &fakeBackend{typ: BackendRemote, available: true, delay: time.Second}
	fast := &fakeBackend{typ: BackendEmbedded, available: true}
	f, err := NewFallback([]CommandGenerator{slow, fast})
	require.NoError(t, err)

	// the primary's own deadline expires; the chain still has time for the next backend
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.GenerateCommand(ctx, NewRequest("list files", ShellBash))
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Equal(t, int32(0), fast.calls.Load(), "expired request context must stop the chain")

	slow.delay = 0
	slow.err = ErrTimeout(50*time.Millisecond, context.DeadlineExceeded)
	cmd, err := f.GenerateCommand(context.Background(), NewRequest("list files", ShellBash))
	require.NoError(t, err)
	assert.Equal(t, "embedded", cmd.BackendUsed)
}

func TestFallbackIsAvailable(t *testing.T) {
	down := &fakeBackend{typ: BackendRemote}
	up := &fakeBackend{typ: BackendEmbedded, available: true}

	f, err := NewFallback([]CommandGenerator{down, up})
	require.NoError(t, err)
	assert.True(t, f.IsAvailable(context.Background()))

	f, err = NewFallback([]CommandGenerator{down})
	require.NoError(t, err)
	assert.False(t, f.IsAvailable(context.Background()))
}

func TestFallbackBackendsAndShutdown(t *testing.T) {
	a := &fakeBackend{typ: BackendRemote, shutErr: errors.New("close failed")}
	b := &fakeBackend{typ: BackendEmbedded}
	f, err := NewFallback([]CommandGenerator{a, b})
	require.NoError(t, err)

	infos := f.Backends()
	require.Len(t, infos, 2)
	assert.Equal(t, BackendRemote, infos[0].Type)
	assert.Equal(t, BackendRemote, f.BackendInfo().Type)

	err = f.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote: close failed")
	assert.Equal(t, int32(1), a.shutdowns.Load())
	assert.Equal(t, int32(1), b.shutdowns.Load())
}

func TestFallbackNilCommandIsAFailure(t *testing.T) {
	broken := &fakeBackend{typ: BackendRemote, available: true, nilResult: true}
	f, err := NewFallback([]CommandGenerator{broken})
	require.NoError(t, err)

	_, err = f.GenerateCommand(context.Background(), NewRequest("list files", ShellBash))
	require.Error(t, err)
	assert.True(t, IsGenerationFailed(err))
	assert.Contains(t, err.Error(), "remote: generation failed: backend returned no command")

	embedded := &fakeBackend{typ: BackendEmbedded, available: true}
	f, err = NewFallback([]CommandGenerator{broken, embedded})
	require.NoError(t, err)
	cmd, err := f.GenerateCommand(context.Background(), NewRequest("list files", ShellBash))
	require.NoError(t, err)
	assert.Equal(t, "embedded", cmd.BackendUsed)
}

func TestFallbackCachesAvailabilityWithinTTL(t *testing.T) {
	remote := &fakeBackend{typ: BackendRemote}
	embedded := &fakeBackend{typ: BackendEmbedded, available: true}
	f, err := NewFallback([]CommandGenerator{remote, embedded}, WithHealthTTL(time.Minute))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		cmd, err := f.GenerateCommand(context.Background(), NewRequest("list files", ShellBash))
		require.NoError(t, err)
		assert.Equal(t, "embedded", cmd.BackendUsed)
	}
	assert.True(t, f.IsAvailable(context.Background()))
	assert.Equal(t, int32(1), remote.probes.Load())
	assert.Equal(t, int32(1), embedded.probes.Load())
}

func TestFallbackZeroTTLChecksEveryRequest(t *testing.T) {
	remote := &fakeBackend{typ: BackendRemote}
	embedded := &fakeBackend{typ: BackendEmbedded, available: true}
	f, err := NewFallback([]CommandGenerator{remote, embedded}, WithHealthTTL(0))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.GenerateCommand(context.Background(), NewRequest("list files", ShellBash))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), remote.probes.Load())
}

func TestFallbackRechecksAfterTTL(t *testing.T) {
	remote := &fakeBackend{typ: BackendRemote}
	embedded := &fakeBackend{typ: BackendEmbedded, available: true}
	f, err := NewFallback([]CommandGenerator{remote, embedded}, WithHealthTTL(30*time.Millisecond))
	require.NoError(t, err)

	cmd, err := f.GenerateCommand(context.Background(), NewRequest("list files", ShellBash))
	require.NoError(t, err)
	assert.Equal(t, "embedded", cmd.BackendUsed)

	remote.available = true
	time.Sleep(50 * time.Millisecond)
	cmd, err = f.GenerateCommand(context.Background(), NewRequest("list files", ShellBash))
	require.NoError(t, err)
	assert.Equal(t, "remote", cmd.BackendUsed)
	assert.Equal(t, int32(2), remote.probes.Load())
}

func TestFallbackUnavailableResultMarksBackendDown(t *testing.T) {
	remote := &fakeBackend{typ: BackendRemote, available: true, err: ErrUnavailable("server gone")}
	embedded := &fakeBackend{typ: BackendEmbedded, available: true}
	f, err := NewFallback([]CommandGenerator{remote, embedded}, WithHealthTTL(time.Minute))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		cmd, err := f.GenerateCommand(context.Background(), NewRequest("list files", ShellBash))
		require.NoError(t, err)
		assert.Equal(t, "embedded", cmd.BackendUsed)
	}
	assert.Equal(t, int32(1), remote.calls.Load())
	st := f.Backends()[0]
	assert.False(t, st.LastProbeOK)
	assert.Less(t, st.AvailabilityScore, 1.0)
}

func TestFallbackStatusCounters(t *testing.T) {
	remote := &fakeBackend{typ: BackendRemote, available: true, err: ErrTimeout(time.Second, nil)}
	embedded := &fakeBackend{typ: BackendEmbedded, available: true, delay: 5 * time.Millisecond}
	f, err := NewFallback([]CommandGenerator{remote, embedded})
	require.NoError(t, err)

	before := f.Backends()
	assert.Zero(t, before[0].Requests)
	assert.Equal(t, 1.0, before[0].SuccessRate)
	assert.True(t, before[0].LastUsed.IsZero())

	for i := 0; i < 2; i++ {
		_, err := f.GenerateCommand(context.Background(), NewRequest("list files", ShellBash))
		require.NoError(t, err)
	}

	st := f.Backends()
	require.Len(t, st, 2)
	assert.Equal(t, BackendRemote, st[0].Type)
	assert.EqualValues(t, 2, st[0].Requests)
	assert.EqualValues(t, 2, st[0].Failures)
	assert.InDelta(t, 0.81, st[0].SuccessRate, 1e-9)
	assert.True(t, st[0].LastProbeOK)
	assert.False(t, st[0].LastUsed.IsZero())
	assert.False(t, st[0].LastProbe.IsZero())

	assert.EqualValues(t, 2, st[1].Requests)
	assert.Zero(t, st[1].Failures)
	assert.Equal(t, 1.0, st[1].SuccessRate)
	assert.GreaterOrEqual(t, st[1].AvgLatency, 5*time.Millisecond)
}
