package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cmdgen/internal/generator"
	"cmdgen/pkg/types"
)

var (
	genShell  string
	genSafety string
	genJSON   bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [description...]",
	Short: "Generate a shell command from a description",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genShell, "shell", "bash", "target shell: bash|zsh|fish|sh|powershell|cmd")
	generateCmd.Flags().StringVar(&genSafety, "safety", "moderate", "strict|moderate|permissive")
	generateCmd.Flags().BoolVar(&genJSON, "json", false, "print the full result as JSON")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)
	shell, err := generator.ParseShell(genShell)
	if err != nil {
		return err
	}
	safety, err := generator.ParseSafety(genSafety)
	if err != nil {
		return err
	}
	chain, err := buildGenerator(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := chain.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()

	req := generator.CommandRequest{Prompt: strings.Join(args, " "), Shell: shell, Safety: safety}
	out, err := chain.GenerateCommand(cmd.Context(), req)
	if err != nil {
		var ge *generator.Error
		if errors.As(err, &ge) {
			fmt.Fprintln(os.Stderr, "hint:", ge.Suggestion())
		}
		return err
	}
	if genJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(types.GenerateResponse{
			Command:      out.Command,
			Explanation:  out.Explanation,
			BackendUsed:  out.BackendUsed,
			Confidence:   out.Confidence,
			GenerationMS: out.GenerationTime.Milliseconds(),
			Warnings:     out.Warnings,
		})
	}
	for _, w := range out.Warnings {
		log.Warn().Str("backend", out.BackendUsed).Msg(w)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.Command)
	return nil
}
