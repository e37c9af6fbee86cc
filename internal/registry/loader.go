// Package registry lists GGUF model files available to the embedded backend.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cmdgen/internal/common/fsutil"
	"cmdgen/internal/embedded"
)

// Model is one GGUF file found on disk.
type Model struct {
	// ID is the filename including extension, e.g. "qwen2.5-coder-1.5b-q4_k_m.gguf".
	ID        string `json:"id"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	// Problem is the preflight failure, empty when the file looks loadable.
	Problem string `json:"problem,omitempty"`
}

// Usable reports whether the file passed preflight.
func (m Model) Usable() bool { return m.Problem == "" }

// LoadDir scans dir (a leading ~ is expanded) for *.gguf files, sorted by ID.
// Each file is preflighted so a truncated or mislabeled download is reported
// here rather than at first generation.
func LoadDir(dir string) ([]Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []Model
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".gguf") {
			continue
		}
		m := Model{ID: e.Name(), Path: filepath.Join(abs, e.Name())}
		if fi, err := e.Info(); err == nil {
			m.SizeBytes = fi.Size()
		}
		if err := embedded.Preflight(m.Path); err != nil {
			m.Problem = err.Error()
		}
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}
