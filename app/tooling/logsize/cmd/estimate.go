package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/cowprotocol/etherum-log-size/foundation/logstats/estimate"
	"github.com/cowprotocol/etherum-log-size/foundation/logstats/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	fromBlock uint64
	toBlock   uint64
	format    string
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Extrapolate log totals and storage size from the sample file.",
	RunE:  estimateRun,
}

func init() {
	rootCmd.AddCommand(estimateCmd)
	estimateCmd.Flags().Uint64Var(&fromBlock, "from", 0, "Lowest block to include.")
	estimateCmd.Flags().Uint64Var(&toBlock, "to", math.MaxUint64, "Highest block to include.")
	estimateCmd.Flags().StringVarP(&format, "format", "o", "text", "Output format: text, json or yaml.")
}

func estimateRun(cmd *cobra.Command, args []string) error {
	if fromBlock > toBlock {
		return fmt.Errorf("--from %d is above --to %d", fromBlock, toBlock)
	}

	recs, err := storage.ReadAll(samplePath)
	if err != nil {
		return fmt.Errorf("reading samples: %w", err)
	}

	est, err := estimate.Run(recs, estimate.Range{From: fromBlock, To: toBlock})
	if err != nil {
		return err
	}

	return writeEstimate(cmd.OutOrStdout(), est, format)
}

// writeEstimate renders the estimate in the requested format.
func writeEstimate(w io.Writer, est estimate.Estimate, format string) error {
	switch format {
	case "text":
		_, err := fmt.Fprintln(w, est)
		return err

	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(est.Report())

	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(est.Report())
	}

	return fmt.Errorf("unknown output format %q", format)
}
