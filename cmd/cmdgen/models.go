package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cmdgen/internal/registry"
)

var modelsDir string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List GGUF models next to the configured model path",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dir := modelsDir
		if dir == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dir = filepath.Dir(cfg.Embedded.ModelPath)
		}
		models, err := registry.LoadDir(dir)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSIZE (MB)\tSTATUS")
		for _, m := range models {
			status := "ok"
			if !m.Usable() {
				status = m.Problem
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\n", m.ID, m.SizeBytes>>20, status)
		}
		return tw.Flush()
	},
}

func init() {
	modelsCmd.Flags().StringVar(&modelsDir, "dir", "", "directory to scan (default: the model path's directory)")
}
