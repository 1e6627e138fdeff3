/*
Package estimate extrapolates the storage footprint of logs across a block
range from a sparse, unordered set of sampled blocks.

Samples are sorted by block number and every sample is taken to represent
each block from its own number up to, but not including, the next sample's
number. This is a left step interpolation: it assumes log activity is
locally constant between samples, so the result is a biased extrapolation
and not an unbiased statistical estimator. The last sample only terminates
the final span and contributes no blocks of its own.

Duplicate block numbers are expected over a long sampling run. Sorting is
stable, so duplicates keep the order they were written in and only the last
written duplicate's statistics are carried forward. The earlier duplicates
span zero blocks.
*/
package estimate

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"math/big"
	"slices"

	"github.com/cowprotocol/etherum-log-size/foundation/logstats/record"
	"github.com/holiman/uint256"
)

// OverheadPerLog is the fixed number of bytes a downstream store keeps for
// every log: block number, log index, transaction index, address, topic
// count and data length.
const OverheadPerLog = 8 + 8 + 8 + 20 + 1 + 8

// TopicSize is the number of bytes charged for each topic.
const TopicSize = 32

// ErrInsufficientData is returned when fewer than two distinct blocks remain
// after filtering, which leaves no span to extrapolate over.
var ErrInsufficientData = errors.New("insufficient data to extrapolate")

// =============================================================================

// Range is an inclusive range of block numbers.
type Range struct {
	From uint64
	To   uint64
}

// All returns a range that covers every block.
func All() Range {
	return Range{From: 0, To: math.MaxUint64}
}

// Contains reports whether the block falls inside the range.
func (r Range) Contains(block uint64) bool {
	return block >= r.From && block <= r.To
}

// =============================================================================

// Estimate holds the extrapolated totals for the span covered by the samples.
// Totals are kept in 256 bits so no realistic chain can overflow them.
type Estimate struct {
	Samples  int
	MinBlock uint64
	MaxBlock uint64
	Blocks   uint64
	Logs     uint256.Int
	Data     uint256.Int
	Topics   uint256.Int
	Size     uint256.Int
}

// Run filters the records to the specified range, orders them by block and
// extrapolates the totals over the span they cover. The caller's slice is
// not modified.
func Run(records []record.Record, rng Range) (Estimate, error) {
	samples := make([]record.Record, 0, len(records))
	for _, rec := range records {
		if rng.Contains(rec.Block) {
			samples = append(samples, rec)
		}
	}

	if len(samples) < 2 {
		return Estimate{}, fmt.Errorf("%d samples in range: %w", len(samples), ErrInsufficientData)
	}

	slices.SortStableFunc(samples, func(a, b record.Record) int {
		return cmp.Compare(a.Block, b.Block)
	})

	first := samples[0]
	last := samples[len(samples)-1]
	if first.Block == last.Block {
		return Estimate{}, fmt.Errorf("all %d samples are for block %d: %w", len(samples), first.Block, ErrInsufficientData)
	}

	est := Estimate{
		Samples:  len(samples),
		MinBlock: first.Block,
		MaxBlock: last.Block,
	}

	var width, value, term uint256.Int
	for i := 0; i+1 < len(samples); i++ {
		a, b := samples[i], samples[i+1]

		blocks := b.Block - a.Block
		if blocks == 0 {
			continue
		}

		est.Blocks += blocks
		width.SetUint64(blocks)

		value.SetUint64(a.LogCount)
		est.Logs.Add(&est.Logs, term.Mul(&value, &width))

		value.SetUint64(a.DataLen)
		est.Data.Add(&est.Data, term.Mul(&value, &width))

		value.SetUint64(a.TopicCount)
		est.Topics.Add(&est.Topics, term.Mul(&value, &width))
	}

	est.Size = SizeOf(&est.Logs, &est.Data, &est.Topics)

	return est, nil
}

// SizeOf applies the per log overhead model to the specified totals.
func SizeOf(logs, data, topics *uint256.Int) uint256.Int {
	var size, term uint256.Int

	size.Mul(logs, uint256.NewInt(OverheadPerLog))
	size.Add(&size, data)
	size.Add(&size, term.Mul(topics, uint256.NewInt(TopicSize)))

	return size
}

// AvgLogs returns the average number of logs per block.
func (est Estimate) AvgLogs() float64 {
	return perBlock(&est.Logs, est.Blocks)
}

// AvgSize returns the average number of bytes per block.
func (est Estimate) AvgSize() float64 {
	return perBlock(&est.Size, est.Blocks)
}

// String renders the estimate as a human readable summary.
func (est Estimate) String() string {
	return fmt.Sprintf(
		"Extrapolating %.1e samples over blocks %d..%d gives:\n%.1e blocks\n%.1e logs, avg %.1e\n%.1e size, avg %.1e",
		float64(est.Samples), est.MinBlock, est.MaxBlock,
		float64(est.Blocks),
		toFloat(&est.Logs), est.AvgLogs(),
		toFloat(&est.Size), est.AvgSize(),
	)
}

// =============================================================================

// Report is the serializable form of an estimate.
type Report struct {
	Samples  int     `json:"samples" yaml:"samples"`
	MinBlock uint64  `json:"min_block" yaml:"min_block"`
	MaxBlock uint64  `json:"max_block" yaml:"max_block"`
	Blocks   uint64  `json:"blocks" yaml:"blocks"`
	Logs     string  `json:"logs" yaml:"logs"`
	AvgLogs  float64 `json:"avg_logs" yaml:"avg_logs"`
	Data     string  `json:"data" yaml:"data"`
	Topics   string  `json:"topics" yaml:"topics"`
	Size     string  `json:"size" yaml:"size"`
	AvgSize  float64 `json:"avg_size" yaml:"avg_size"`
}

// Report converts the estimate into its serializable form. Totals are
// rendered as decimal strings since they may not fit in 64 bits.
func (est Estimate) Report() Report {
	return Report{
		Samples:  est.Samples,
		MinBlock: est.MinBlock,
		MaxBlock: est.MaxBlock,
		Blocks:   est.Blocks,
		Logs:     est.Logs.ToBig().String(),
		AvgLogs:  est.AvgLogs(),
		Data:     est.Data.ToBig().String(),
		Topics:   est.Topics.ToBig().String(),
		Size:     est.Size.ToBig().String(),
		AvgSize:  est.AvgSize(),
	}
}

// =============================================================================

func perBlock(total *uint256.Int, blocks uint64) float64 {
	if blocks == 0 {
		return 0
	}
	return toFloat(total) / float64(blocks)
}

func toFloat(v *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
