// Package sampler implements the random block sampling loop that feeds the
// sample file.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/cowprotocol/etherum-log-size/foundation/logstats/record"
	"github.com/ethereum/go-ethereum/core/types"
)

// Defaults applied when the matching Config field is left zero.
const (
	DefaultSafetyMargin   = 64
	DefaultBatchSize      = 100
	DefaultRequestTimeout = 30 * time.Second
)

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the sampling loop.
type EventHandler func(v string, args ...any)

// ChainReader represents the behavior required from the RPC collaborator.
type ChainReader interface {
	CurrentBlock(ctx context.Context) (uint64, error)
	LogsForBlock(ctx context.Context, block uint64) ([]types.Log, error)
}

// Writer represents the behavior required from the sample file.
type Writer interface {
	Write(rec record.Record) error
	Flush() error
	Sync() error
}

// Config represents the configuration required to start sampling.
//
// SafetyMargin, BatchSize and RequestTimeout fall back to their Default
// values when left zero, so a margin of zero blocks can't be configured.
// A zero Limit samples until Shutdown is called.
type Config struct {
	Reader         ChainReader
	Writer         Writer
	SafetyMargin   uint64
	BatchSize      uint64
	Limit          uint64
	RequestTimeout time.Duration
	Rand           *rand.Rand
	EvHandler      EventHandler
	OnSample       func(rec record.Record)
}

// Progress is a snapshot of the sampler.
type Progress struct {
	Running  bool           `json:"running"`
	MaxBlock uint64         `json:"max_block"`
	Samples  uint64         `json:"samples"`
	Failures uint64         `json:"failures"`
	Last     *record.Record `json:"last,omitempty"`
}

// Sampler draws random blocks below the chain head and appends their log
// statistics to the sample file.
type Sampler struct {
	reader    ChainReader
	writer    Writer
	maxBlock  uint64
	batchSize uint64
	limit     uint64
	timeout   time.Duration
	rand      *rand.Rand
	evHandler EventHandler
	onSample  func(rec record.Record)

	quit     atomic.Bool
	running  atomic.Bool
	samples  atomic.Uint64
	failures atomic.Uint64
	last     atomic.Pointer[record.Record]
}

// New constructs a sampler. The chain head is read once here and the
// sampling bound derived from it is kept for the lifetime of the sampler.
func New(ctx context.Context, cfg Config) (*Sampler, error) {
	if cfg.Reader == nil {
		return nil, &SetupError{Op: "chain reader", Err: errors.New("not provided")}
	}
	if cfg.Writer == nil {
		return nil, &SetupError{Op: "output", Err: errors.New("not provided")}
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	margin := cfg.SafetyMargin
	if margin == 0 {
		margin = DefaultSafetyMargin
	}

	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}

	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	head, err := cfg.Reader.CurrentBlock(ctx)
	if err != nil {
		return nil, &SetupError{Op: "current block", Err: err}
	}

	// Blocks this close to the head can still be reorganized.
	if head < margin {
		return nil, &SetupError{Op: "current block", Err: fmt.Errorf("head %d is below the safety margin %d", head, margin)}
	}

	s := Sampler{
		reader:    cfg.Reader,
		writer:    cfg.Writer,
		maxBlock:  head - margin,
		batchSize: batchSize,
		limit:     cfg.Limit,
		timeout:   timeout,
		rand:      rnd,
		evHandler: ev,
		onSample:  cfg.OnSample,
	}

	ev("sampler: new: head[%d] margin[%d] maxBlock[%d]", head, margin, s.maxBlock)

	return &s, nil
}

// MaxBlock returns the highest block number the sampler will draw.
func (s *Sampler) MaxBlock() uint64 {
	return s.maxBlock
}

// Run performs the sampling loop until Shutdown is called or the configured
// limit is reached. Failed fetches are reported and skipped. On exit the
// output is flushed and synced. Only output failures are returned.
func (s *Sampler) Run() error {
	s.running.Store(true)
	defer s.running.Store(false)

	s.evHandler("sampler: run: started")
	defer s.evHandler("sampler: run: completed")

	var n uint64
	for !s.quit.Load() {
		if s.limit > 0 && n >= s.limit {
			s.evHandler("sampler: run: limit[%d] reached", s.limit)
			break
		}

		block := s.draw()

		logs, err := s.fetch(block)
		if err != nil {
			s.failures.Add(1)
			s.evHandler("sampler: run: ERROR: %s", &TransportError{Block: block, Err: err})
			continue
		}

		rec := record.Summarize(block, logs)
		if err := s.writer.Write(rec); err != nil {
			return fmt.Errorf("writing block %d: %w", block, err)
		}

		n++
		s.samples.Add(1)
		s.last.Store(&rec)

		if s.onSample != nil {
			s.onSample(rec)
		}

		if n%s.batchSize == 0 {
			if err := s.writer.Flush(); err != nil {
				return fmt.Errorf("flushing: %w", err)
			}
			s.evHandler("sampler: run: samples[%d] block[%d] logs[%d] data[%d] topics[%d]", s.samples.Load(), rec.Block, rec.LogCount, rec.DataLen, rec.TopicCount)
		}
	}

	s.evHandler("sampler: run: sync output: samples[%d] failures[%d]", s.samples.Load(), s.failures.Load())
	if err := s.writer.Sync(); err != nil {
		return fmt.Errorf("syncing: %w", err)
	}

	return nil
}

// Shutdown asks the sampling loop to stop. A fetch already in flight is
// allowed to complete and its sample is kept.
func (s *Sampler) Shutdown() {
	s.evHandler("sampler: shutdown: signaled")
	s.quit.Store(true)
}

// Status returns a snapshot of the sampler's progress. It is safe to call
// while the loop is running.
func (s *Sampler) Status() Progress {
	return Progress{
		Running:  s.running.Load(),
		MaxBlock: s.maxBlock,
		Samples:  s.samples.Load(),
		Failures: s.failures.Load(),
		Last:     s.last.Load(),
	}
}

// =============================================================================

// draw picks a block uniformly from [0, maxBlock].
func (s *Sampler) draw() uint64 {
	if s.maxBlock == math.MaxUint64 {
		return s.rand.Uint64()
	}
	return s.rand.Uint64N(s.maxBlock + 1)
}

// fetch retrieves the logs for a single block. The request is bounded by
// its own timeout and is not tied to Shutdown.
func (s *Sampler) fetch(block uint64) ([]types.Log, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	return s.reader.LogsForBlock(ctx, block)
}
