package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"cmdgen/internal/config"
	"cmdgen/internal/embedded"
	"cmdgen/internal/generator"
	"cmdgen/internal/platform"
	"cmdgen/internal/remote"
)

// buildGenerator constructs the configured backends in priority order. No
// model is loaded and no network call is made here.
func buildGenerator(cfg config.Config, log zerolog.Logger) (*generator.FallbackGenerator, error) {
	pub := generator.LogPublisher{Log: log}
	backends := make([]generator.CommandGenerator, 0, len(cfg.Backends))
	for _, name := range cfg.Backends {
		switch name {
		case config.BackendEmbedded:
			variant, err := platform.ParseVariant(cfg.Embedded.Variant)
			if err != nil {
				return nil, err
			}
			eb, err := embedded.New(variant, cfg.Embedded.ModelPath,
				embedded.WithConfig(embeddedConfig(cfg.Embedded)),
				embedded.WithLogger(log),
				embedded.WithPublisher(pub))
			if err != nil {
				return nil, err
			}
			backends = append(backends, eb)
		case config.BackendRemote:
			rb, err := remote.New(cfg.Remote.Endpoint,
				remote.WithConfig(remoteConfig(cfg.Remote)),
				remote.WithLogger(log))
			if err != nil {
				return nil, err
			}
			backends = append(backends, rb)
		default:
			return nil, fmt.Errorf("unknown backend %q", name)
		}
	}
	return generator.NewFallback(backends,
		generator.WithHealthTTL(healthTTL(cfg.HealthTTLMS)),
		generator.WithFallbackLogger(log),
		generator.WithFallbackPublisher(pub))
}

func healthTTL(ms int) time.Duration {
	switch {
	case ms < 0:
		return 0
	case ms == 0:
		return generator.DefaultHealthTTL
	}
	return config.Millis(ms)
}

func embeddedConfig(c config.Embedded) embedded.Config {
	out := embedded.Config{
		ContextSize:     c.ContextSize,
		Threads:         c.Threads,
		GPULayers:       c.GPULayers,
		MaxTokens:       c.MaxTokens,
		TopP:            c.TopP,
		LoadTimeout:     config.Millis(c.LoadTimeoutMS),
		GenerateTimeout: config.Millis(c.GenerateTimeoutMS),
	}
	if c.Temperature != nil {
		out.Temperature = *c.Temperature
	}
	return out
}

func remoteConfig(c config.Remote) remote.Config {
	return remote.Config{
		Model:          c.Model,
		APIKey:         c.APIKey,
		MaxRetries:     c.MaxRetries,
		BaseBackoff:    config.Millis(c.BaseBackoffMS),
		MaxBackoff:     config.Millis(c.MaxBackoffMS),
		AttemptTimeout: config.Millis(c.AttemptTimeoutMS),
		OverallTimeout: config.Millis(c.OverallTimeoutMS),
		ProbeTimeout:   config.Millis(c.ProbeTimeoutMS),
		MaxTokens:      c.MaxTokens,
		Stream:         c.Stream,
	}
}
