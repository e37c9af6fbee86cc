package embedded

import (
	"context"

	"cmdgen/internal/platform"
)

// Resource is a loaded model ready for inference. Implementations must be
// safe for concurrent Infer calls.
type Resource interface {
	// Infer runs one completion. Implementations must return when ctx is done.
	Infer(ctx context.Context, prompt string, p InferParams) (string, error)
	// Close releases the loaded weights.
	Close() error
}

// LoadSpec describes what to load.
type LoadSpec struct {
	Path        string
	Variant     platform.Variant
	ContextSize int
	Threads     int
	GPULayers   int
}

// InferParams are per-call sampling parameters.
type InferParams struct {
	MaxTokens   int
	Temperature float32
	TopP        float32
	TopK        int
	Stop        []string
}

// Loader acquires a Resource. It should honor ctx where the runtime allows;
// the backend abandons (and later closes) loads that outlive their deadline.
type Loader func(ctx context.Context, spec LoadSpec) (Resource, error)
