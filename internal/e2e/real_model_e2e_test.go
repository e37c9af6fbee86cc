//go:build llama

package e2e

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"cmdgen/internal/embedded"
	"cmdgen/internal/generator"
	"cmdgen/internal/platform"
)

// TestRealModel_ListFiles runs the embedded backend against a real GGUF model.
// Skips unless CMDGEN_E2E_MODEL points to a model file.
func TestRealModel_ListFiles(t *testing.T) {
	path := strings.TrimSpace(os.Getenv("CMDGEN_E2E_MODEL"))
	if path == "" {
		t.Skip("CMDGEN_E2E_MODEL not set; skipping real model test")
	}
	eb, err := embedded.New(platform.Detect(), path, embedded.WithConfig(embedded.Config{GenerateTimeout: 2 * time.Minute}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer eb.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	first, err := eb.GenerateCommand(ctx, generator.NewRequest("list all files in the current directory", generator.ShellBash))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := eb.GenerateCommand(ctx, generator.NewRequest("show current directory", generator.ShellBash))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	t.Logf("first=%q (%s) second=%q (%s)", first.Command, first.GenerationTime, second.Command, second.GenerationTime)
	if first.Command == "" || second.Command == "" {
		t.Fatalf("empty command")
	}
	if eb.LoadCount() != 1 {
		t.Fatalf("expected a single load, got %d", eb.LoadCount())
	}
}
