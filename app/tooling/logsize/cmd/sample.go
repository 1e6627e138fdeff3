package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cowprotocol/etherum-log-size/foundation/logstats/ethrpc"
	"github.com/cowprotocol/etherum-log-size/foundation/logstats/record"
	"github.com/cowprotocol/etherum-log-size/foundation/logstats/sampler"
	"github.com/cowprotocol/etherum-log-size/foundation/logstats/storage"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/cheggaaa/pb.v1"
)

var (
	nodeURL      string
	sampleCount  uint64
	safetyMargin uint64
	timeout      time.Duration
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Append a fixed number of random block samples to the sample file.",
	RunE:  sampleRun,
}

func init() {
	rootCmd.AddCommand(sampleCmd)
	sampleCmd.Flags().StringVarP(&nodeURL, "node-url", "u", "", "Node RPC endpoint, defaults to $NODE_URL.")
	sampleCmd.Flags().Uint64VarP(&sampleCount, "count", "n", 1000, "Number of blocks to sample.")
	sampleCmd.Flags().Uint64Var(&safetyMargin, "margin", sampler.DefaultSafetyMargin, "Blocks below the head to stay clear of.")
	sampleCmd.Flags().DurationVar(&timeout, "timeout", sampler.DefaultRequestTimeout, "Timeout for each node request.")
}

func sampleRun(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	if nodeURL == "" {
		nodeURL = os.Getenv("NODE_URL")
	}
	if nodeURL == "" {
		return errors.New("no node url: set --node-url or NODE_URL")
	}
	if sampleCount == 0 {
		return errors.New("--count must be above zero")
	}

	strg, err := storage.New(samplePath)
	if err != nil {
		return &sampler.SetupError{Op: "opening output", Err: err}
	}
	defer strg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := ethrpc.Dial(ctx, nodeURL)
	if err != nil {
		return &sampler.SetupError{Op: "connecting to node", Err: err}
	}
	defer client.Close()

	bar := pb.New64(int64(sampleCount))
	bar.ShowTimeLeft = true
	bar.ShowSpeed = true
	bar.Output = cmd.ErrOrStderr()

	smp, err := sampler.New(ctx, sampler.Config{
		Reader:         client,
		Writer:         strg,
		SafetyMargin:   safetyMargin,
		Limit:          sampleCount,
		RequestTimeout: timeout,
		OnSample:       func(record.Record) { bar.Increment() },
	})
	if err != nil {
		return err
	}

	// An interrupt stops sampling early; collected samples are kept.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	release := stopOnSignal(sigs, smp.Shutdown)
	defer release()

	fmt.Fprintf(cmd.ErrOrStderr(), "Sampling %d blocks from [0, %d]\n", sampleCount, smp.MaxBlock())

	bar.Start()
	err = smp.Run()
	bar.Finish()

	if err != nil {
		return err
	}

	st := smp.Status()
	fmt.Fprintf(cmd.OutOrStdout(), "Collected %d samples (%d failed fetches), file now holds %d records\n", st.Samples, st.Failures, strg.Count())

	return nil
}

// stopOnSignal calls stop when a signal arrives on sigs. The returned
// function ends the wait without calling stop and blocks until the waiting
// goroutine has exited.
func stopOnSignal(sigs <-chan os.Signal, stop func()) (release func()) {
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)

		select {
		case <-sigs:
			stop()
		case <-done:
		}
	}()

	return func() {
		close(done)
		<-exited
	}
}
