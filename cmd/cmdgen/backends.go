package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"cmdgen/internal/httpapi"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List configured backends and whether the chain can serve",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		chain, err := buildGenerator(cfg, newLogger(cfg.LogLevel))
		if err != nil {
			return err
		}
		defer chain.Shutdown(context.Background())

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(httpapi.BackendsResponse(cmd.Context(), chain))
	},
}
