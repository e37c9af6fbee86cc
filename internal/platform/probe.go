// Package platform maps the running OS/CPU (and accelerator support compiled
// into the binary) to the embedded model variant to use.
package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// Variant is the platform-specific inference path for the embedded backend.
type Variant int

const (
	// Generic is the portable CPU path and the universal fallback.
	Generic Variant = iota
	// Accelerated offloads model layers to a GPU (Metal on Apple Silicon,
	// CUDA when built with the 'cuda' tag).
	Accelerated
)

func (v Variant) String() string {
	switch v {
	case Accelerated:
		return "accelerated"
	default:
		return "generic"
	}
}

// Detect returns the best variant for the running platform. It reads only
// compile-time platform identifiers and never fails.
func Detect() Variant {
	return detectFor(runtime.GOOS, runtime.GOARCH, cudaBuilt)
}

func detectFor(goos, goarch string, cuda bool) Variant {
	if goos == "darwin" && goarch == "arm64" {
		return Accelerated
	}
	if cuda && (goos == "linux" || goos == "windows") && goarch == "amd64" {
		return Accelerated
	}
	return Generic
}

// ParseVariant resolves a configured variant name. "auto" and "" defer to Detect.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Detect(), nil
	case "accelerated", "gpu", "metal", "cuda":
		return Accelerated, nil
	case "generic", "cpu":
		return Generic, nil
	default:
		return Generic, fmt.Errorf("unknown model variant: %q", s)
	}
}
