package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"cmdgen/internal/common/fsutil"
	"cmdgen/internal/platform"
)

// Environment variables read by ApplyEnv and the CLI.
const (
	EnvConfig         = "CMDGEN_CONFIG"
	EnvModelPath      = "CMDGEN_MODEL_PATH"
	EnvRemoteEndpoint = "CMDGEN_REMOTE_ENDPOINT"
)

// Backend names accepted in Config.Backends.
const (
	BackendEmbedded = "embedded"
	BackendRemote   = "remote"
)

// DefaultModelPath is where the embedded model is expected when none is configured.
const DefaultModelPath = "~/.cache/cmdgen/models/qwen2.5-coder-1.5b-instruct-q4_k_m.gguf"

// Config holds runtime parameters. Zero values mean "unspecified": ApplyDefaults
// fills the top-level ones and each backend applies its own defaults.
type Config struct {
	// Backends in priority order, e.g. [remote, embedded].
	Backends []string `json:"backends" yaml:"backends" toml:"backends"`
	LogLevel string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	// HealthTTLMS is how long a backend probe result is reused; 0 means the
	// default, negative probes on every request.
	HealthTTLMS int      `json:"health_ttl_ms" yaml:"health_ttl_ms" toml:"health_ttl_ms"`
	Embedded    Embedded `json:"embedded" yaml:"embedded" toml:"embedded"`
	Remote      Remote   `json:"remote" yaml:"remote" toml:"remote"`
	Server      Server   `json:"server" yaml:"server" toml:"server"`
}

type Embedded struct {
	ModelPath   string `json:"model_path" yaml:"model_path" toml:"model_path"`
	Variant     string `json:"variant" yaml:"variant" toml:"variant"`
	ContextSize int    `json:"context_size" yaml:"context_size" toml:"context_size"`
	Threads     int    `json:"threads" yaml:"threads" toml:"threads"`
	GPULayers   int    `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	MaxTokens   int    `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	// nil means default; an explicit 0 selects greedy sampling.
	Temperature       *float32 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP              float32  `json:"top_p" yaml:"top_p" toml:"top_p"`
	LoadTimeoutMS     int      `json:"load_timeout_ms" yaml:"load_timeout_ms" toml:"load_timeout_ms"`
	GenerateTimeoutMS int      `json:"generate_timeout_ms" yaml:"generate_timeout_ms" toml:"generate_timeout_ms"`
}

type Remote struct {
	Endpoint         string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	Model            string `json:"model" yaml:"model" toml:"model"`
	APIKey           string `json:"api_key" yaml:"api_key" toml:"api_key"`
	MaxRetries       int    `json:"max_retries" yaml:"max_retries" toml:"max_retries"`
	BaseBackoffMS    int    `json:"base_backoff_ms" yaml:"base_backoff_ms" toml:"base_backoff_ms"`
	MaxBackoffMS     int    `json:"max_backoff_ms" yaml:"max_backoff_ms" toml:"max_backoff_ms"`
	AttemptTimeoutMS int    `json:"attempt_timeout_ms" yaml:"attempt_timeout_ms" toml:"attempt_timeout_ms"`
	OverallTimeoutMS int    `json:"overall_timeout_ms" yaml:"overall_timeout_ms" toml:"overall_timeout_ms"`
	ProbeTimeoutMS   int    `json:"probe_timeout_ms" yaml:"probe_timeout_ms" toml:"probe_timeout_ms"`
	MaxTokens        int    `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Stream           bool   `json:"stream" yaml:"stream" toml:"stream"`
}

type Server struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	// GenerateTimeoutMS bounds one /generate request; 0 leaves it to the backends.
	GenerateTimeoutMS int      `json:"generate_timeout_ms" yaml:"generate_timeout_ms" toml:"generate_timeout_ms"`
	CORSEnabled       bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins       []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvModelPath); ok && strings.TrimSpace(v) != "" {
		c.Embedded.ModelPath = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvRemoteEndpoint); ok && strings.TrimSpace(v) != "" {
		c.Remote.Endpoint = strings.TrimSpace(v)
	}
}

// ApplyDefaults fills unspecified top-level fields. Without an explicit
// backend list, a configured remote endpoint is tried before the embedded model.
func (c *Config) ApplyDefaults() error {
	if len(c.Backends) == 0 {
		if c.Remote.Endpoint != "" {
			c.Backends = []string{BackendRemote, BackendEmbedded}
		} else {
			c.Backends = []string{BackendEmbedded}
		}
	}
	for i, b := range c.Backends {
		c.Backends[i] = strings.ToLower(strings.TrimSpace(b))
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Embedded.ModelPath == "" {
		c.Embedded.ModelPath = DefaultModelPath
	}
	p, err := fsutil.ExpandHome(c.Embedded.ModelPath)
	if err != nil {
		return err
	}
	c.Embedded.ModelPath = p
	if c.Embedded.Temperature == nil {
		t := float32(0.7)
		c.Embedded.Temperature = &t
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = 64 << 10
	}
	return nil
}

// Validate rejects configurations no backend could be built from.
func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("no backends configured")
	}
	seen := map[string]bool{}
	for _, b := range c.Backends {
		if seen[b] {
			return fmt.Errorf("backend %q listed twice", b)
		}
		seen[b] = true
		switch b {
		case BackendEmbedded:
			if strings.TrimSpace(c.Embedded.ModelPath) == "" {
				return fmt.Errorf("embedded backend requires embedded.model_path")
			}
			if _, err := platform.ParseVariant(c.Embedded.Variant); err != nil {
				return err
			}
		case BackendRemote:
			if strings.TrimSpace(c.Remote.Endpoint) == "" {
				return fmt.Errorf("remote backend requires remote.endpoint (or %s)", EnvRemoteEndpoint)
			}
		default:
			return fmt.Errorf("unknown backend %q (want %s or %s)", b, BackendEmbedded, BackendRemote)
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// Millis converts a *_ms field; zero stays zero so the backend default applies.
func Millis(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
