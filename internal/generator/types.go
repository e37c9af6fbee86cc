package generator

import (
	"fmt"
	"strings"
	"time"
)

// MaxPromptBytes bounds the natural-language input accepted by any backend.
const MaxPromptBytes = 4096

// ShellType is the target shell dialect.
type ShellType string

const (
	ShellBash       ShellType = "bash"
	ShellZsh        ShellType = "zsh"
	ShellFish       ShellType = "fish"
	ShellSh         ShellType = "sh"
	ShellPowerShell ShellType = "powershell"
	ShellCmd        ShellType = "cmd"
)

func (s ShellType) valid() bool {
	switch s {
	case ShellBash, ShellZsh, ShellFish, ShellSh, ShellPowerShell, ShellCmd:
		return true
	}
	return false
}

// ParseShell resolves a shell name; empty means bash.
func ParseShell(s string) (ShellType, error) {
	v := ShellType(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case "":
		return ShellBash, nil
	case "pwsh":
		return ShellPowerShell, nil
	}
	if !v.valid() {
		return "", ErrInvalidRequest(fmt.Sprintf("unknown shell %q", s))
	}
	return v, nil
}

// SafetyLevel is the caller's safety preference. It shapes the prompt only;
// risk classification happens outside this package.
type SafetyLevel string

const (
	SafetyStrict     SafetyLevel = "strict"
	SafetyModerate   SafetyLevel = "moderate"
	SafetyPermissive SafetyLevel = "permissive"
)

func (s SafetyLevel) valid() bool {
	switch s {
	case SafetyStrict, SafetyModerate, SafetyPermissive:
		return true
	}
	return false
}

// ParseSafety resolves a safety level name; empty means moderate.
func ParseSafety(s string) (SafetyLevel, error) {
	v := SafetyLevel(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return SafetyModerate, nil
	}
	if !v.valid() {
		return "", ErrInvalidRequest(fmt.Sprintf("unknown safety level %q", s))
	}
	return v, nil
}

// CommandRequest is an immutable generation request.
type CommandRequest struct {
	Prompt string
	Shell  ShellType
	Safety SafetyLevel
}

// NewRequest builds a request with the default (moderate) safety level.
func NewRequest(prompt string, shell ShellType) CommandRequest {
	return CommandRequest{Prompt: prompt, Shell: shell, Safety: SafetyModerate}
}

// Normalize returns a copy with defaults applied to empty enum fields.
func (r CommandRequest) Normalize() CommandRequest {
	if r.Shell == "" {
		r.Shell = ShellBash
	}
	if r.Safety == "" {
		r.Safety = SafetyModerate
	}
	return r
}

// Validate performs basic input checks and returns an InvalidRequest error.
func (r CommandRequest) Validate() error {
	p := strings.TrimSpace(r.Prompt)
	if p == "" {
		return ErrInvalidRequest("prompt is empty")
	}
	if len(r.Prompt) > MaxPromptBytes {
		return ErrInvalidRequest(fmt.Sprintf("prompt too long: %d bytes (max %d)", len(r.Prompt), MaxPromptBytes))
	}
	if r.Shell != "" && !r.Shell.valid() {
		return ErrInvalidRequest(fmt.Sprintf("unknown shell %q", r.Shell))
	}
	if r.Safety != "" && !r.Safety.valid() {
		return ErrInvalidRequest(fmt.Sprintf("unknown safety level %q", r.Safety))
	}
	return nil
}

// GeneratedCommand is the result of one successful generation.
type GeneratedCommand struct {
	Command        string        `json:"command"`
	Explanation    string        `json:"explanation,omitempty"`
	BackendUsed    string        `json:"backend_used"`
	Confidence     float64       `json:"confidence"`
	GenerationTime time.Duration `json:"generation_time"`
	Warnings       []string      `json:"warnings,omitempty"`
}
