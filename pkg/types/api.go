// Package types holds the JSON payloads of the cmdgen HTTP API.
package types

import "time"

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	// Natural-language description of the command.
	// example: list all pdf files modified this week
	Prompt string `json:"prompt"`
	// Target shell: bash (default), zsh, fish, sh, powershell, cmd.
	Shell string `json:"shell,omitempty"`
	// Safety preference: strict, moderate (default), permissive.
	Safety string `json:"safety,omitempty"`
}

// GenerateResponse is returned by a successful POST /generate.
type GenerateResponse struct {
	Command      string   `json:"command"`
	Explanation  string   `json:"explanation,omitempty"`
	BackendUsed  string   `json:"backend_used"`
	Confidence   float64  `json:"confidence"`
	GenerationMS int64    `json:"generation_ms"`
	Warnings     []string `json:"warnings,omitempty"`
}

// BackendStatus describes one composed backend for GET /backends: static
// capabilities followed by what the server has observed since start.
type BackendStatus struct {
	Type              string `json:"backend_type"`
	ModelName         string `json:"model_name"`
	SupportsStreaming bool   `json:"supports_streaming"`
	MaxTokens         int    `json:"max_tokens"`
	TypicalLatencyMS  int    `json:"typical_latency_ms"`
	MemoryMB          int    `json:"memory_usage_mb"`
	Version           string `json:"version"`

	Requests          int64   `json:"requests"`
	Failures          int64   `json:"failures"`
	SuccessRate       float64 `json:"success_rate"`
	AvailabilityScore float64 `json:"availability_score"`
	AvgLatencyMS      int64   `json:"avg_latency_ms"`
	// Timestamps are omitted until the event first happens.
	LastUsed    *time.Time `json:"last_used,omitempty"`
	LastProbe   *time.Time `json:"last_probe,omitempty"`
	LastProbeOK bool       `json:"last_probe_ok"`
}

// BackendsResponse wraps the backend list in priority order.
type BackendsResponse struct {
	Backends  []BackendStatus `json:"backends"`
	Available bool            `json:"available"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid request: prompt is empty
	Error string `json:"error"`
	// HTTP status code.
	// example: 400
	Code int `json:"code"`
	// Error kind, e.g. "timeout" or "model load error".
	Kind string `json:"kind,omitempty"`
	// Actionable hint for the user.
	Suggestion string `json:"suggestion,omitempty"`
}
