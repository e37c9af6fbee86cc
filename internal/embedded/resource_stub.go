//go:build !llama

package embedded

import (
	"context"

	"cmdgen/internal/generator"
)

// llamaBuilt is false in CGO-free builds.
const llamaBuilt = false

// loadLlama fails fast: the llama runtime is not linked into this build.
func loadLlama(ctx context.Context, spec LoadSpec) (Resource, error) {
	return nil, generator.ErrModelLoad(spec.Path, "llama support not built (missing 'llama' build tag)", true, nil)
}
