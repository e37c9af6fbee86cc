// Package remote generates commands through an OpenAI-compatible completion
// server (llama.cpp server, vLLM, Ollama's /v1 surface).
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"cmdgen/internal/generator"
	"cmdgen/internal/metrics"
)

const (
	backendName = string(generator.BackendRemote)

	remoteLatencyMS   = 2000
	confidenceStrict  = 0.8
	confidenceLenient = 0.55
)

// Backend is the remote CommandGenerator. It keeps no per-request state.
type Backend struct {
	endpoint string
	cfg      Config
	client   *http.Client
	log      zerolog.Logger
	closed   atomic.Bool
}

// Compile-time interface assertion.
var _ generator.CommandGenerator = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

func WithConfig(c Config) Option { return func(b *Backend) { b.cfg = c } }

func WithLogger(l zerolog.Logger) Option { return func(b *Backend) { b.log = l } }

// WithHTTPClient replaces the default client. Its Timeout should be zero;
// deadlines are carried by request contexts.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) {
		if c != nil {
			b.client = c
		}
	}
}

// New validates endpoint and returns a backend. It makes no network calls.
func New(endpoint string, opts ...Option) (*Backend, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, generator.ErrInvalidRequest(fmt.Sprintf("invalid remote endpoint %q", endpoint)).WithBackend(backendName)
	}
	b := &Backend{endpoint: endpoint, log: zerolog.Nop()}
	for _, o := range opts {
		o(b)
	}
	b.cfg = b.cfg.withDefaults()
	if b.client == nil {
		b.client = newHTTPClient(b.cfg.ProbeTimeout)
	}
	b.log = b.log.With().Str("backend", backendName).Str("endpoint", endpoint).Logger()
	return b, nil
}

func newHTTPClient(connectTimeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   connectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout stays 0: every request carries a context deadline.
	return &http.Client{Transport: tr, Timeout: 0}
}

// IsAvailable probes GET /v1/models within ProbeTimeout. Any HTTP response
// below 500 counts as reachable; errors are logged, never returned.
func (b *Backend) IsAvailable(ctx context.Context) bool {
	if b.closed.Load() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, b.cfg.ProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"/v1/models", nil)
	if err != nil {
		return false
	}
	b.authorize(req)
	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Debug().Err(err).Msg("probe_fail")
		return false
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		b.log.Debug().Int("status", resp.StatusCode).Msg("probe_fail")
		return false
	}
	return true
}

// GenerateCommand posts the prompt, retrying transient failures with capped
// exponential backoff. OverallTimeout bounds the call including backoff.
func (b *Backend) GenerateCommand(ctx context.Context, req generator.CommandRequest) (*generator.GeneratedCommand, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, attribute(err)
	}
	if b.closed.Load() {
		return nil, generator.ErrUnavailable("backend is shut down").WithBackend(backendName)
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, b.cfg.OverallTimeout)
	defer cancel()

	body, err := json.Marshal(completionRequest{
		Model:       b.cfg.Model,
		Prompt:      generator.BuildPrompt(req),
		MaxTokens:   b.cfg.MaxTokens,
		Temperature: b.cfg.Temperature,
		Stop:        b.cfg.Stop,
		Stream:      b.cfg.Stream,
	})
	if err != nil {
		return nil, generator.ErrGenerationFailed("encode request", err).WithBackend(backendName)
	}

	var (
		raw      string
		attempts int
		last     error
	)
	err = retry.Do(ctx, b.backoff(), func(ctx context.Context) error {
		attempts++
		text, err := b.complete(ctx, body)
		if err == nil {
			raw = text
			metrics.IncRemoteAttempt("ok")
			return nil
		}
		last = err
		if generator.IsRetryable(err) {
			metrics.IncRemoteAttempt("retry")
			b.log.Warn().Err(err).Int("attempt", attempts).Msg("attempt_fail")
			return retry.RetryableError(err)
		}
		metrics.IncRemoteAttempt("fail")
		return err
	})
	if err != nil {
		return nil, b.finalError(ctx, err, last, attempts, time.Since(start))
	}

	cmd, warnings, err := generator.ParseCommand(raw)
	if err != nil {
		b.log.Debug().Str("raw", raw).Msg("parse_fail")
		return nil, attribute(err)
	}
	conf := confidenceStrict
	if len(warnings) > 0 {
		conf = confidenceLenient
	}
	return &generator.GeneratedCommand{
		Command:        cmd,
		Explanation:    "Generated using remote backend (" + b.BackendInfo().ModelName + ")",
		BackendUsed:    backendName,
		Confidence:     conf,
		GenerationTime: time.Since(start),
		Warnings:       warnings,
	}, nil
}

func (b *Backend) backoff() retry.Backoff {
	bo := retry.NewExponential(b.cfg.BaseBackoff)
	bo = retry.WithJitterPercent(jitterPercent, bo)
	bo = retry.WithCappedDuration(b.cfg.MaxBackoff, bo)
	return retry.WithMaxRetries(b.cfg.retries(), bo)
}

// complete runs one attempt under AttemptTimeout. A done parent context is
// returned as-is so retry.Do stops.
func (b *Backend) complete(ctx context.Context, body []byte) (string, error) {
	actx, cancel := context.WithTimeout(ctx, b.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodPost, b.endpoint+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return "", generator.ErrGenerationFailed("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	b.authorize(req)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", b.transportError(ctx, actx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		detail := fmt.Sprintf("http %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", generator.ErrTransientFailure(detail, nil)
		}
		return "", generator.ErrGenerationFailed(detail, nil)
	}
	text, err := readCompletion(resp.Body)
	if err != nil {
		if errors.Is(err, errUnknownBody) {
			return "", generator.ErrGenerationFailed("decode response", err)
		}
		return "", b.transportError(ctx, actx, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", generator.ErrGenerationFailed("empty completion", nil)
	}
	return text, nil
}

func (b *Backend) transportError(ctx, actx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case actx.Err() != nil:
		return generator.ErrTimeout(b.cfg.AttemptTimeout, err)
	default:
		return generator.ErrTransientFailure("request failed", err)
	}
}

// finalError maps the retry outcome onto the taxonomy, keeping the last
// attempt's detail.
func (b *Backend) finalError(ctx context.Context, err, last error, attempts int, elapsed time.Duration) error {
	var out *generator.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		out = generator.ContextError(ctx, elapsed)
		if last != nil && !errors.Is(last, err) {
			out.Detail = fmt.Sprintf("%d attempt(s), last: %v", attempts, last)
		}
	case errors.As(err, &out):
		c := *out
		c.Detail = strings.TrimSpace(fmt.Sprintf("%s (%d attempt(s))", c.Detail, attempts))
		out = &c
	default:
		out = generator.ErrGenerationFailed("remote call failed", err)
	}
	out = out.WithBackend(backendName)
	b.log.Warn().Err(out).Int("attempts", attempts).Dur("dur", elapsed).Msg("generate_fail")
	return out
}

func (b *Backend) authorize(req *http.Request) {
	if b.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}
}

func (b *Backend) BackendInfo() generator.BackendInfo {
	name := b.cfg.Model
	if name == "" {
		name = "server-default"
	}
	return generator.BackendInfo{
		Type:              generator.BackendRemote,
		ModelName:         name,
		SupportsStreaming: false,
		MaxTokens:         b.cfg.MaxTokens,
		TypicalLatencyMS:  remoteLatencyMS,
		MemoryMB:          0,
		Version:           generator.Version,
	}
}

// Shutdown closes idle connections. Later calls are no-ops.
func (b *Backend) Shutdown(context.Context) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.client.CloseIdleConnections()
	b.log.Debug().Msg("shutdown: idle connections closed")
	return nil
}

func attribute(err error) error {
	var ge *generator.Error
	if errors.As(err, &ge) {
		return ge.WithBackend(backendName)
	}
	return err
}
