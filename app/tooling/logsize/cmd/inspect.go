package cmd

import (
	"fmt"

	"github.com/cowprotocol/etherum-log-size/foundation/logstats/estimate"
	"github.com/cowprotocol/etherum-log-size/foundation/logstats/storage"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print how the sample file covers the chain.",
	RunE:  inspectRun,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func inspectRun(cmd *cobra.Command, args []string) error {
	recs, err := storage.ReadAll(samplePath)
	if err != nil {
		return fmt.Errorf("reading samples: %w", err)
	}

	cov := estimate.Describe(recs)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File:       %s\n", samplePath)
	fmt.Fprintf(out, "Records:    %d\n", cov.Records)
	fmt.Fprintf(out, "Distinct:   %d\n", cov.Distinct)
	fmt.Fprintf(out, "Duplicates: %d\n", cov.Duplicates)
	if cov.Records > 0 {
		fmt.Fprintf(out, "Blocks:     %d..%d\n", cov.MinBlock, cov.MaxBlock)
		fmt.Fprintf(out, "Empty:      %d\n", cov.Empty)
	}

	return nil
}
