package embedded

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"cmdgen/internal/generator"
	"cmdgen/internal/metrics"
	"cmdgen/internal/platform"
)

// State is the lifecycle of the backend's model resource.
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

const (
	backendName = string(generator.BackendEmbedded)

	confidenceStrict  = 0.85
	confidenceLenient = 0.6
)

// Backend is the embedded CommandGenerator.
type Backend struct {
	variant   platform.Variant
	path      string
	cfg       Config
	loader    Loader
	log       zerolog.Logger
	publisher generator.EventPublisher

	// mu guards res and state transitions. Inference holds it for reading so
	// Shutdown waits for in-flight calls before releasing the model.
	mu      sync.RWMutex
	res     Resource
	loadErr error // sticky structural load failure
	// pending is closed when a loader abandoned by LoadTimeout returns. While
	// it is set no new load starts.
	pending chan struct{}
	state   atomic.Int32
	closed  atomic.Bool
	loads   atomic.Int64
	sf      singleflight.Group
}

// Compile-time interface assertion.
var _ generator.CommandGenerator = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

func WithConfig(c Config) Option { return func(b *Backend) { b.cfg = c } }

func WithLogger(l zerolog.Logger) Option { return func(b *Backend) { b.log = l } }

// WithLoader replaces the llama loader, e.g. with a fake in tests.
func WithLoader(l Loader) Option {
	return func(b *Backend) {
		if l != nil {
			b.loader = l
		}
	}
}

func WithPublisher(p generator.EventPublisher) Option {
	return func(b *Backend) {
		if p != nil {
			b.publisher = p
		}
	}
}

// New validates its arguments and returns an unloaded backend. It performs
// no I/O; the model is loaded on first use.
func New(variant platform.Variant, modelPath string, opts ...Option) (*Backend, error) {
	modelPath = strings.TrimSpace(modelPath)
	if modelPath == "" {
		return nil, generator.ErrModelLoad("", "model path is empty", true, nil).WithBackend(backendName)
	}
	if variant != platform.Accelerated && variant != platform.Generic {
		return nil, generator.ErrInvalidRequest(fmt.Sprintf("unknown model variant %d", variant)).WithBackend(backendName)
	}
	b := &Backend{
		variant:   variant,
		path:      modelPath,
		loader:    loadLlama,
		log:       zerolog.Nop(),
		publisher: generator.NoopPublisher{},
	}
	for _, o := range opts {
		o(b)
	}
	b.cfg = b.cfg.withDefaults()
	b.log = b.log.With().Str("backend", backendName).Str("variant", variant.String()).Logger()
	return b, nil
}

// State reports the current lifecycle state.
func (b *Backend) State() State { return State(b.state.Load()) }

// LoadCount is the number of load transitions executed so far.
func (b *Backend) LoadCount() int64 { return b.loads.Load() }

// Variant returns the variant chosen at construction.
func (b *Backend) Variant() platform.Variant { return b.variant }

// Load warms the backend up. It shares the in-flight load with concurrent
// GenerateCommand callers.
func (b *Backend) Load(ctx context.Context) error {
	start := time.Now()
	if err := b.ensureLoaded(ctx); err != nil {
		return b.tag(ctx, err, start)
	}
	return nil
}

func (b *Backend) ensureLoaded(ctx context.Context) error {
	if b.closed.Load() {
		return generator.ErrUnavailable("backend is shut down")
	}
	switch b.State() {
	case StateLoaded:
		return nil
	case StateReleased:
		return generator.ErrUnavailable("backend is shut down")
	}
	ch := b.sf.DoChan("load", func() (any, error) {
		return nil, b.load()
	})
	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		// the load keeps going for later callers
		return ctx.Err()
	}
}

// load performs one Unloaded -> Loading -> Loaded transition. It runs at most
// once at a time per Backend (singleflight) and is not bound to any caller's
// context.
func (b *Backend) load() error {
	b.mu.Lock()
	switch {
	case b.State() == StateLoaded:
		b.mu.Unlock()
		return nil
	case b.State() == StateReleased:
		b.mu.Unlock()
		return generator.ErrUnavailable("backend is shut down")
	case b.loadErr != nil:
		err := b.loadErr
		b.mu.Unlock()
		return err
	case b.pending != nil:
		b.mu.Unlock()
		return generator.ErrModelLoad(b.path, "previous load is still running", false, nil)
	}
	b.state.Store(int32(StateLoading))
	b.mu.Unlock()

	b.loads.Add(1)
	start := time.Now()
	b.log.Info().Str("path", b.path).Bool("llama_built", llamaBuilt).Msg("load_start")
	res, late, err := b.acquire()
	dur := time.Since(start)

	b.mu.Lock()
	defer b.mu.Unlock()
	if late != nil {
		b.pending = make(chan struct{})
		go b.settleLate(late, b.pending, start)
	}
	if b.State() == StateReleased {
		// Shutdown ran while loading.
		if res != nil {
			_ = res.Close()
		}
		metrics.ObserveModelLoad(b.variant.String(), "aborted", dur)
		return generator.ErrUnavailable("backend shut down during load")
	}
	if err != nil {
		b.state.Store(int32(StateUnloaded))
		if generator.IsStructural(err) {
			b.loadErr = err
		}
		metrics.ObserveModelLoad(b.variant.String(), "fail", dur)
		b.log.Error().Err(err).Dur("dur", dur).Bool("structural", generator.IsStructural(err)).Msg("load_fail")
		b.publisher.Publish(generator.NewEvent("load_fail", backendName, map[string]any{"error": err.Error()}))
		return err
	}
	b.res = res
	b.state.Store(int32(StateLoaded))
	metrics.ObserveModelLoad(b.variant.String(), "ok", dur)
	b.log.Info().Dur("dur", dur).Msg("load_ready")
	b.publisher.Publish(generator.NewEvent("load_ready", backendName, map[string]any{"dur_ms": dur.Milliseconds()}))
	return nil
}

type loadResult struct {
	res Resource
	err error
}

// acquire runs the loader under LoadTimeout. On timeout the loader is left
// running and its eventual result is delivered on late.
func (b *Backend) acquire() (Resource, <-chan loadResult, error) {
	if err := Preflight(b.path); err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.LoadTimeout)
	defer cancel()

	done := make(chan loadResult, 1)
	spec := LoadSpec{
		Path:        b.path,
		Variant:     b.variant,
		ContextSize: b.cfg.ContextSize,
		Threads:     b.cfg.Threads,
		GPULayers:   b.cfg.GPULayers,
	}
	go func() {
		r, err := b.loader(ctx, spec)
		done <- loadResult{r, err}
	}()
	select {
	case r := <-done:
		res, err := b.checkLoad(r)
		return res, nil, err
	case <-ctx.Done():
		return nil, done, generator.ErrModelLoad(b.path, fmt.Sprintf("load timed out after %s", b.cfg.LoadTimeout), false, ctx.Err())
	}
}

func (b *Backend) checkLoad(r loadResult) (Resource, error) {
	if r.err != nil {
		var ge *generator.Error
		if errors.As(r.err, &ge) {
			return nil, r.err
		}
		return nil, generator.ErrModelLoad(b.path, "load failed", false, r.err)
	}
	if r.res == nil {
		return nil, generator.ErrModelLoad(b.path, "loader returned no resource", false, nil)
	}
	return r.res, nil
}

// settleLate waits for a loader that outlived LoadTimeout. A resource that
// arrives while the backend is still unloaded is installed; otherwise it is
// closed. Either way the gate reopens.
func (b *Backend) settleLate(late <-chan loadResult, pending chan struct{}, start time.Time) {
	r := <-late
	res, err := b.checkLoad(r)
	if err != nil && r.res != nil {
		_ = r.res.Close()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	defer close(pending)
	b.pending = nil
	dur := time.Since(start)
	switch {
	case err != nil:
		if generator.IsStructural(err) {
			b.loadErr = err
		}
		b.log.Warn().Err(err).Dur("dur", dur).Msg("load_fail: late loader")
	case b.State() != StateUnloaded || b.closed.Load():
		_ = res.Close()
		b.log.Debug().Dur("dur", dur).Msg("late model discarded")
	default:
		b.res = res
		b.state.Store(int32(StateLoaded))
		metrics.ObserveModelLoad(b.variant.String(), "late", dur)
		b.log.Info().Dur("dur", dur).Msg("load_ready: late loader")
		b.publisher.Publish(generator.NewEvent("load_ready", backendName, map[string]any{"dur_ms": dur.Milliseconds(), "late": true}))
	}
}

// GenerateCommand loads the model on first use, then runs one inference
// bounded by the configured GenerateTimeout.
func (b *Backend) GenerateCommand(ctx context.Context, req generator.CommandRequest) (*generator.GeneratedCommand, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, b.tag(ctx, err, time.Now())
	}
	start := time.Now()
	if err := b.ensureLoaded(ctx); err != nil {
		return nil, b.tag(ctx, err, start)
	}

	ictx, cancel := context.WithTimeout(ctx, b.cfg.GenerateTimeout)
	defer cancel()

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.res == nil {
		return nil, generator.ErrUnavailable("backend is shut down").WithBackend(backendName)
	}
	raw, err := b.res.Infer(ictx, generator.BuildPrompt(req), InferParams{
		MaxTokens:   b.cfg.MaxTokens,
		Temperature: b.cfg.Temperature,
		TopP:        b.cfg.TopP,
		Stop:        b.cfg.Stop,
	})
	if err != nil {
		if ictx.Err() != nil {
			return nil, generator.ContextError(ictx, time.Since(start)).WithBackend(backendName)
		}
		return nil, b.tag(ctx, generator.ErrGenerationFailed("inference failed", err), start)
	}
	cmd, warnings, err := generator.ParseCommand(raw)
	if err != nil {
		b.log.Debug().Str("raw", raw).Msg("parse_fail")
		return nil, b.tag(ctx, err, start)
	}
	conf := confidenceStrict
	if len(warnings) > 0 {
		conf = confidenceLenient
	}
	return &generator.GeneratedCommand{
		Command:        cmd,
		Explanation:    fmt.Sprintf("Generated using %s backend", b.variant),
		BackendUsed:    backendName,
		Confidence:     conf,
		GenerationTime: time.Since(start),
		Warnings:       warnings,
	}, nil
}

// IsAvailable is true until Shutdown. It never loads or touches the file system.
func (b *Backend) IsAvailable(context.Context) bool {
	return !b.closed.Load()
}

func (b *Backend) BackendInfo() generator.BackendInfo {
	latency, mem := footprint(b.variant)
	return generator.BackendInfo{
		Type:              generator.BackendEmbedded,
		ModelName:         strings.TrimSuffix(filepath.Base(b.path), filepath.Ext(b.path)),
		SupportsStreaming: false,
		MaxTokens:         b.cfg.MaxTokens,
		TypicalLatencyMS:  latency,
		MemoryMB:          mem,
		Version:           generator.Version,
	}
}

// Shutdown releases the loaded model after in-flight inferences finish. A
// loader still running past LoadTimeout is waited for until ctx is done.
// Later calls are no-ops.
func (b *Backend) Shutdown(ctx context.Context) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.mu.Lock()
	res := b.res
	b.res = nil
	b.state.Store(int32(StateReleased))
	pending := b.pending
	b.mu.Unlock()
	if pending != nil {
		select {
		case <-pending:
		case <-ctx.Done():
			b.log.Warn().Msg("shutdown: abandoned load still running")
			return ctx.Err()
		}
	}
	if res == nil {
		b.log.Debug().Msg("shutdown: nothing loaded")
		return nil
	}
	if err := res.Close(); err != nil {
		b.log.Warn().Err(err).Msg("shutdown: close failed")
		return generator.ErrGenerationFailed("release model", err).WithBackend(backendName)
	}
	b.log.Info().Msg("shutdown: model released")
	return nil
}

// tag maps raw context errors onto the taxonomy and attributes the result.
func (b *Backend) tag(ctx context.Context, err error, start time.Time) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		var ge *generator.Error
		if !errors.As(err, &ge) && ctx.Err() != nil {
			return generator.ContextError(ctx, time.Since(start)).WithBackend(backendName)
		}
	}
	var ge *generator.Error
	if errors.As(err, &ge) {
		return ge.WithBackend(backendName)
	}
	return err
}

// LlamaSupport reports whether this binary links the llama runtime.
func LlamaSupport() bool { return llamaBuilt }
