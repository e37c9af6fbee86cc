package embedded

import (
	"runtime"
	"time"

	"cmdgen/internal/platform"
)

// Config holds the embedded backend's tuning knobs. Zero values take defaults.
type Config struct {
	ContextSize int
	Threads     int
	// GPULayers is only applied to the accelerated variant; 0 offloads all layers.
	GPULayers   int
	MaxTokens   int
	Temperature float32
	TopP        float32
	Stop        []string

	// LoadTimeout bounds one load transition.
	LoadTimeout time.Duration
	// GenerateTimeout is the ceiling for one inference, independent of the caller's deadline.
	GenerateTimeout time.Duration
}

const (
	defaultContextSize     = 2048
	defaultMaxTokens       = 100
	defaultTemperature     = 0.7
	defaultTopP            = 0.9
	defaultLoadTimeout     = 2 * time.Minute
	defaultGenerateTimeout = 30 * time.Second
	allGPULayers           = 999
)

// DefaultConfig returns the defaults used for zero fields. A zero
// Temperature is kept as greedy sampling, so DefaultConfig sets it explicitly.
func DefaultConfig() Config {
	return Config{Temperature: defaultTemperature}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.ContextSize <= 0 {
		c.ContextSize = defaultContextSize
	}
	if c.Threads <= 0 {
		c.Threads = max(1, runtime.NumCPU()/2)
	}
	if c.GPULayers <= 0 {
		c.GPULayers = allGPULayers
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	switch {
	case c.Temperature < 0:
		c.Temperature = 0
	case c.Temperature > 2:
		c.Temperature = 2
	}
	switch {
	case c.TopP <= 0:
		c.TopP = defaultTopP
	case c.TopP > 1:
		c.TopP = 1
	}
	if c.Stop == nil {
		c.Stop = []string{"\n\n", "```"}
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = defaultLoadTimeout
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = defaultGenerateTimeout
	}
	return c
}

// estimates reported by BackendInfo
func footprint(v platform.Variant) (latencyMS, memoryMB int) {
	if v == platform.Accelerated {
		return 1800, 1200
	}
	return 4000, 1500
}
