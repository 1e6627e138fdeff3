// Package cmd contains the logsize tooling commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var samplePath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&samplePath, "file", "f", "out", "Path to the sample file.")
}

var rootCmd = &cobra.Command{
	Use:          "logsize",
	Short:        "Estimate the storage footprint of event logs from sampled blocks",
	SilenceUsage: true,
}

// Execute runs the requested command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
