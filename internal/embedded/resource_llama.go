//go:build llama

package embedded

import (
	"context"
	"errors"

	llama "github.com/go-skynet/go-llama.cpp"

	"cmdgen/internal/generator"
	"cmdgen/internal/platform"
)

// llamaBuilt indicates this binary was compiled with real llama support.
const llamaBuilt = true

type llamaResource struct {
	model   *llama.LLama
	threads int
	// one decode at a time; the model holds a single context
	slot chan struct{}
}

func loadLlama(ctx context.Context, spec LoadSpec) (Resource, error) {
	mo := []llama.ModelOption{llama.SetContext(spec.ContextSize)}
	if spec.Variant == platform.Accelerated && spec.GPULayers > 0 {
		mo = append(mo, llama.SetGPULayers(spec.GPULayers))
	}
	m, err := llama.New(spec.Path, mo...)
	if err != nil {
		return nil, generator.ErrModelLoad(spec.Path, "llama load failed", false, err)
	}
	if ctx.Err() != nil {
		m.Free()
		return nil, ctx.Err()
	}
	return &llamaResource{model: m, threads: spec.Threads, slot: make(chan struct{}, 1)}, nil
}

func (r *llamaResource) Infer(ctx context.Context, prompt string, p InferParams) (string, error) {
	select {
	case r.slot <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-r.slot }()
	if r.model == nil {
		return "", errors.New("llama model not initialized")
	}
	// returning false stops decoding
	r.model.SetTokenCallback(func(string) bool { return ctx.Err() == nil })
	text, err := r.model.Predict(prompt, predictOptions(p, r.threads)...)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

func (r *llamaResource) Close() error {
	if r.model != nil {
		r.model.Free()
		r.model = nil
	}
	return nil
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

func predictOptions(p InferParams, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, p.MaxTokens)),
		llama.SetThreads(max(1, threads)),
		llama.SetTopP(zf(p.TopP, llama.DefaultOptions.TopP)),
		llama.SetTemperature(p.Temperature),
		llama.SetPenalty(llama.DefaultOptions.Penalty),
	}
	if p.TopK > 0 {
		po = append(po, llama.SetTopK(p.TopK))
	}
	if len(p.Stop) > 0 {
		po = append(po, llama.SetStopWords(p.Stop...))
	}
	return po
}
