package estimate

import "github.com/cowprotocol/etherum-log-size/foundation/logstats/record"

// Coverage describes how a set of samples covers the chain.
type Coverage struct {
	Records    int
	Distinct   int
	Duplicates int
	Empty      int
	MinBlock   uint64
	MaxBlock   uint64
}

// Describe reports how the records cover the chain. Empty counts the
// records for blocks that had no logs.
func Describe(records []record.Record) Coverage {
	cov := Coverage{Records: len(records)}
	if len(records) == 0 {
		return cov
	}

	seen := make(map[uint64]struct{}, len(records))
	cov.MinBlock = records[0].Block
	cov.MaxBlock = records[0].Block

	for _, rec := range records {
		seen[rec.Block] = struct{}{}
		cov.MinBlock = min(cov.MinBlock, rec.Block)
		cov.MaxBlock = max(cov.MaxBlock, rec.Block)

		if rec.LogCount == 0 {
			cov.Empty++
		}
	}

	cov.Distinct = len(seen)
	cov.Duplicates = cov.Records - cov.Distinct

	return cov
}
