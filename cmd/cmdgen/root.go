package main

import (
	"os"

	"github.com/spf13/cobra"

	"cmdgen/internal/config"
)

var (
	flagConfig   string
	flagLogLevel string
	flagModel    string
	flagEndpoint string
	flagBackends string
	flagVariant  string
)

var rootCmd = &cobra.Command{
	Use:           "cmdgen",
	Short:         "Turn natural language into shell commands",
	Long:          "cmdgen generates shell commands from a plain-language description using a local GGUF model, an OpenAI-compatible server, or both with fallback.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", os.Getenv(config.EnvConfig), "config file (.yaml, .json or .toml)")
	pf.StringVar(&flagLogLevel, "log-level", "", "debug|info|warn|error")
	pf.StringVar(&flagModel, "model", "", "path to the embedded GGUF model")
	pf.StringVar(&flagEndpoint, "endpoint", "", "remote OpenAI-compatible server, e.g. http://127.0.0.1:8080")
	pf.StringVar(&flagBackends, "backends", "", "comma-separated backend order, e.g. remote,embedded")
	pf.StringVar(&flagVariant, "variant", "", "embedded variant: auto|accelerated|generic")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(backendsCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(modelsCmd)
}

// loadConfig merges file, environment and flags, in that order.
func loadConfig() (config.Config, error) {
	var cfg config.Config
	if flagConfig != "" {
		c, err := config.Load(flagConfig)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	cfg.ApplyEnv(os.LookupEnv)
	if flagModel != "" {
		cfg.Embedded.ModelPath = flagModel
	}
	if flagEndpoint != "" {
		cfg.Remote.Endpoint = flagEndpoint
	}
	if flagVariant != "" {
		cfg.Embedded.Variant = flagVariant
	}
	if bs := splitCSV(flagBackends); len(bs) > 0 {
		cfg.Backends = bs
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
