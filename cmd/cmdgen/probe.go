package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"cmdgen/internal/embedded"
	"cmdgen/internal/platform"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Show the detected platform variant",
	RunE: func(cmd *cobra.Command, _ []string) error {
		v, err := platform.ParseVariant(flagVariant)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(w, "detected: %s\n", platform.Detect())
		fmt.Fprintf(w, "variant:  %s\n", v)
		fmt.Fprintf(w, "llama:    %t\n", embedded.LlamaSupport())
		return nil
	},
}
