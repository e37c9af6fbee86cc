package generator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"cmdgen/internal/metrics"
)

// FallbackGenerator tries composed backends in priority order and returns the
// first success. Retries are left to each backend's own policy; this type only
// governs ordering and hand-off. Availability probes are cached per backend
// for the health TTL; the order itself never changes.
type FallbackGenerator struct {
	backends  []CommandGenerator
	names     []string
	health    []*health
	ttl       time.Duration
	probes    singleflight.Group
	log       zerolog.Logger
	publisher EventPublisher
}

// Compile-time interface assertion.
var _ CommandGenerator = (*FallbackGenerator)(nil)

// FallbackOption configures a FallbackGenerator.
type FallbackOption func(*FallbackGenerator)

// WithFallbackLogger installs a structured logger.
func WithFallbackLogger(l zerolog.Logger) FallbackOption {
	return func(f *FallbackGenerator) { f.log = l }
}

// WithFallbackPublisher installs an EventPublisher for generation records.
func WithFallbackPublisher(p EventPublisher) FallbackOption {
	return func(f *FallbackGenerator) {
		if p == nil {
			p = NoopPublisher{}
		}
		f.publisher = p
	}
}

// WithHealthTTL sets how long a probe result is reused. Zero or negative
// probes on every request.
func WithHealthTTL(d time.Duration) FallbackOption {
	return func(f *FallbackGenerator) {
		if d < 0 {
			d = 0
		}
		f.ttl = d
	}
}

// NewFallback composes backends, highest priority first. By convention an
// always-available embedded backend goes last.
func NewFallback(backends []CommandGenerator, opts ...FallbackOption) (*FallbackGenerator, error) {
	if len(backends) == 0 {
		return nil, errors.New("fallback generator needs at least one backend")
	}
	f := &FallbackGenerator{
		backends:  make([]CommandGenerator, len(backends)),
		names:     make([]string, len(backends)),
		health:    make([]*health, len(backends)),
		ttl:       DefaultHealthTTL,
		log:       zerolog.Nop(),
		publisher: NoopPublisher{},
	}
	for i, b := range backends {
		if b == nil {
			return nil, fmt.Errorf("fallback backend %d is nil", i)
		}
		f.backends[i] = b
		f.names[i] = string(b.BackendInfo().Type)
		f.health[i] = newHealth()
	}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// GenerateCommand runs the per-request state machine:
// TryBackend[i] -> success, or next backend, or Exhausted.
func (f *FallbackGenerator) GenerateCommand(ctx context.Context, req CommandRequest) (*GeneratedCommand, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	attempts := make([]Attempt, 0, len(f.backends))
	for i, b := range f.backends {
		name := f.names[i]
		if ctx.Err() != nil {
			attempts = append(attempts, Attempt{Backend: name, Err: ContextError(ctx, time.Since(start)).WithBackend(name), Skipped: true})
			break
		}
		if !f.available(ctx, i) {
			attempts = append(attempts, Attempt{Backend: name, Err: ErrUnavailable("availability probe failed").WithBackend(name), Skipped: true})
			f.log.Info().Str("backend", name).Msg("fallback_next: backend unavailable")
			metrics.IncFallback(name, "unavailable")
			continue
		}
		t0 := time.Now()
		cmd, err := b.GenerateCommand(ctx, req)
		if err == nil && cmd == nil {
			err = ErrGenerationFailed("backend returned no command", nil)
		}
		f.record(ctx, i, time.Since(t0), err)
		if err == nil {
			metrics.ObserveGenerate(name, "ok", time.Since(t0))
			f.log.Debug().Str("backend", cmd.BackendUsed).Dur("dur", time.Since(start)).Int("attempt", i+1).Msg("generate_ok")
			f.publisher.Publish(NewEvent("generate_ok", cmd.BackendUsed, map[string]any{
				"command":    cmd.Command,
				"confidence": cmd.Confidence,
				"dur_ms":     time.Since(start).Milliseconds(),
				"fallbacks":  i,
				"shell":      string(req.Shell),
			}))
			return cmd, nil
		}
		err = attribute(err, name)
		metrics.ObserveGenerate(name, "fail", time.Since(t0))
		attempts = append(attempts, Attempt{Backend: name, Err: err})
		if i < len(f.backends)-1 {
			metrics.IncFallback(name, KindOf(err).String())
			f.log.Warn().Str("backend", name).Err(err).Msg("fallback_next: backend failed")
		}
	}
	exhausted := &ExhaustedError{Attempts: attempts}
	last := exhausted.Last()
	f.log.Error().Str("backend", last.Backend).Err(exhausted).Msg("generate_fail")
	f.publisher.Publish(NewEvent("generate_fail", last.Backend, map[string]any{
		"error":  exhausted.Error(),
		"kind":   KindOf(exhausted).String(),
		"dur_ms": time.Since(start).Milliseconds(),
	}))
	return nil, exhausted
}

// IsAvailable reports whether any composed backend is available, using cached
// probe results where fresh.
func (f *FallbackGenerator) IsAvailable(ctx context.Context) bool {
	for i := range f.backends {
		if f.available(ctx, i) {
			return true
		}
	}
	return false
}

// available answers from the cache while it is fresh. Concurrent misses for
// one backend share a single probe.
func (f *FallbackGenerator) available(ctx context.Context, i int) bool {
	h := f.health[i]
	if ok, fresh := h.cached(time.Now(), f.ttl); fresh {
		return ok
	}
	v, _, _ := f.probes.Do(strconv.Itoa(i), func() (any, error) {
		ok := f.backends[i].IsAvailable(ctx)
		// a probe cut short by the caller says nothing about the backend
		if ctx.Err() == nil {
			h.recordProbe(ok, time.Now())
		}
		return ok, nil
	})
	return v.(bool)
}

// record updates a backend's runtime status after a generate call. Calls
// ended by the caller's context are not held against the backend.
func (f *FallbackGenerator) record(ctx context.Context, i int, d time.Duration, err error) {
	if err != nil && ctx.Err() != nil {
		return
	}
	now := time.Now()
	f.health[i].recordResult(d, err == nil, now)
	if IsUnavailable(err) {
		f.health[i].recordProbe(false, now)
	}
}

// BackendInfo returns the primary backend's metadata.
func (f *FallbackGenerator) BackendInfo() BackendInfo {
	return f.backends[0].BackendInfo()
}

// Backends lists composed backends in priority order with their runtime status.
func (f *FallbackGenerator) Backends() []BackendStatus {
	out := make([]BackendStatus, len(f.backends))
	for i, b := range f.backends {
		out[i] = f.health[i].status(b.BackendInfo())
	}
	return out
}

// Shutdown shuts every backend down, joining their errors.
func (f *FallbackGenerator) Shutdown(ctx context.Context) error {
	var errs []error
	for i, b := range f.backends {
		if err := b.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.names[i], err))
		}
	}
	return errors.Join(errs...)
}

// ContextError maps a done context onto the taxonomy: an elapsed deadline is
// a Timeout, a cancellation is a GenerationFailed.
func ContextError(ctx context.Context, elapsed time.Duration) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout(elapsed, ctx.Err())
	}
	return ErrGenerationFailed("request canceled", ctx.Err())
}
