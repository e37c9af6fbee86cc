package generator

import "context"

// Version is reported in BackendInfo. Overridden at link time for releases.
var Version = "0.1.0"

// CommandGenerator is implemented by every backend and by FallbackGenerator.
// Implementations must be safe for concurrent use.
type CommandGenerator interface {
	// GenerateCommand turns a natural-language request into a shell command.
	GenerateCommand(ctx context.Context, req CommandRequest) (*GeneratedCommand, error)
	// IsAvailable is an advisory, bounded-latency check. It never returns an error.
	IsAvailable(ctx context.Context) bool
	// BackendInfo returns static metadata; it does not depend on load state.
	BackendInfo() BackendInfo
	// Shutdown releases held resources. Calling it more than once is a no-op.
	Shutdown(ctx context.Context) error
}

// BackendType tags the kind of backend serving a request.
type BackendType string

const (
	BackendEmbedded BackendType = "embedded"
	BackendRemote   BackendType = "remote"
)

// BackendInfo describes a backend's capabilities. Fixed per instance.
type BackendInfo struct {
	Type              BackendType `json:"backend_type"`
	ModelName         string      `json:"model_name"`
	SupportsStreaming bool        `json:"supports_streaming"`
	MaxTokens         int         `json:"max_tokens"`
	TypicalLatencyMS  int         `json:"typical_latency_ms"`
	MemoryMB          int         `json:"memory_usage_mb"`
	Version           string      `json:"version"`
}
