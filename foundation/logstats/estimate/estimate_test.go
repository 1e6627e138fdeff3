package estimate_test

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/cowprotocol/etherum-log-size/foundation/logstats/estimate"
	"github.com/cowprotocol/etherum-log-size/foundation/logstats/record"
	"github.com/holiman/uint256"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type totals struct {
	blocks uint64
	logs   uint64
	data   uint64
	topics uint64
}

func totalsOf(est estimate.Estimate) totals {
	return totals{
		blocks: est.Blocks,
		logs:   est.Logs.Uint64(),
		data:   est.Data.Uint64(),
		topics: est.Topics.Uint64(),
	}
}

// =============================================================================

func Test_Extrapolate(t *testing.T) {
	type table struct {
		name    string
		records []record.Record
		rng     estimate.Range
		exp     totals
		min     uint64
		max     uint64
	}

	tt := []table{
		{
			name: "two records",
			records: []record.Record{
				{Block: 0, LogCount: 10, DataLen: 100, TopicCount: 2},
				{Block: 10, LogCount: 999, DataLen: 999, TopicCount: 999},
			},
			rng: estimate.All(),
			exp: totals{blocks: 10, logs: 100, data: 1000, topics: 20},
			min: 0,
			max: 10,
		},
		{
			name: "last record ignored",
			records: []record.Record{
				{Block: 0, LogCount: 10, DataLen: 100, TopicCount: 2},
				{Block: 10, LogCount: 0, DataLen: 0, TopicCount: 0},
			},
			rng: estimate.All(),
			exp: totals{blocks: 10, logs: 100, data: 1000, topics: 20},
			min: 0,
			max: 10,
		},
		{
			name: "three spans",
			records: []record.Record{
				{Block: 100, LogCount: 1, DataLen: 10, TopicCount: 3},
				{Block: 104, LogCount: 2, DataLen: 20, TopicCount: 1},
				{Block: 110, LogCount: 5, DataLen: 0, TopicCount: 0},
			},
			rng: estimate.All(),
			exp: totals{blocks: 10, logs: 4 + 12, data: 40 + 120, topics: 12 + 6},
			min: 100,
			max: 110,
		},
		{
			name: "duplicates last written wins",
			records: []record.Record{
				{Block: 5, LogCount: 1, DataLen: 1, TopicCount: 1},
				{Block: 5, LogCount: 3, DataLen: 7, TopicCount: 2},
				{Block: 15, LogCount: 100, DataLen: 100, TopicCount: 100},
			},
			rng: estimate.All(),
			exp: totals{blocks: 10, logs: 30, data: 70, topics: 20},
			min: 5,
			max: 15,
		},
		{
			name: "range filter",
			records: []record.Record{
				{Block: 1, LogCount: 1000, DataLen: 1000, TopicCount: 1000},
				{Block: 20, LogCount: 2, DataLen: 4, TopicCount: 1},
				{Block: 30, LogCount: 1, DataLen: 1, TopicCount: 1},
				{Block: 90, LogCount: 1000, DataLen: 1000, TopicCount: 1000},
			},
			rng: estimate.Range{From: 10, To: 50},
			exp: totals{blocks: 10, logs: 20, data: 40, topics: 10},
			min: 20,
			max: 30,
		},
		{
			name: "range bounds inclusive",
			records: []record.Record{
				{Block: 10, LogCount: 1, DataLen: 1, TopicCount: 1},
				{Block: 50, LogCount: 1, DataLen: 1, TopicCount: 1},
			},
			rng: estimate.Range{From: 10, To: 50},
			exp: totals{blocks: 40, logs: 40, data: 40, topics: 40},
			min: 10,
			max: 50,
		},
	}

	t.Log("Given the need to extrapolate log totals from samples.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				est, err := estimate.Run(tst.records, tst.rng)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to extrapolate: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould be able to extrapolate.", success, testID)

				if got := totalsOf(est); got != tst.exp {
					t.Logf("\t%s\tTest %d:\tgot: %+v", failed, testID, got)
					t.Logf("\t%s\tTest %d:\texp: %+v", failed, testID, tst.exp)
					t.Fatalf("\t%s\tTest %d:\tShould get the right totals.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould get the right totals.", success, testID)

				if est.MinBlock != tst.min || est.MaxBlock != tst.max {
					t.Fatalf("\t%s\tTest %d:\tShould cover %d..%d, got %d..%d.", failed, testID, tst.min, tst.max, est.MinBlock, est.MaxBlock)
				}
				t.Logf("\t%s\tTest %d:\tShould cover the right span.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_DuplicateMatchesSingle(t *testing.T) {
	withDup := []record.Record{
		{Block: 5, LogCount: 9, DataLen: 9, TopicCount: 9},
		{Block: 5, LogCount: 4, DataLen: 8, TopicCount: 2},
		{Block: 15, LogCount: 1, DataLen: 1, TopicCount: 1},
	}
	without := []record.Record{
		{Block: 5, LogCount: 4, DataLen: 8, TopicCount: 2},
		{Block: 15, LogCount: 1, DataLen: 1, TopicCount: 1},
	}

	a, err := estimate.Run(withDup, estimate.All())
	if err != nil {
		t.Fatalf("Should extrapolate with duplicates: %v", err)
	}

	b, err := estimate.Run(without, estimate.All())
	if err != nil {
		t.Fatalf("Should extrapolate without duplicates: %v", err)
	}

	if totalsOf(a) != totalsOf(b) {
		t.Logf("got: %+v", totalsOf(a))
		t.Logf("exp: %+v", totalsOf(b))
		t.Fatalf("Should not double count a duplicate block.")
	}
}

func Test_ShuffleInvariant(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))

	records := make([]record.Record, 500)
	for i := range records {
		records[i] = record.Record{
			Block:      uint64(i) * 7,
			LogCount:   rnd.Uint64N(500),
			DataLen:    rnd.Uint64N(1 << 20),
			TopicCount: rnd.Uint64N(2000),
		}
	}

	exp, err := estimate.Run(records, estimate.All())
	if err != nil {
		t.Fatalf("Should extrapolate sorted records: %v", err)
	}

	for i := 0; i < 10; i++ {
		shuffled := append([]record.Record(nil), records...)
		rnd.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got, err := estimate.Run(shuffled, estimate.All())
		if err != nil {
			t.Fatalf("\t%s\tShuffle %d:\tShould extrapolate shuffled records: %v", failed, i, err)
		}

		if totalsOf(got) != totalsOf(exp) || !got.Size.Eq(&exp.Size) {
			t.Fatalf("\t%s\tShuffle %d:\tShould get identical totals regardless of order.", failed, i)
		}
		t.Logf("\t%s\tShuffle %d:\tShould get identical totals regardless of order.", success, i)
	}
}

func Test_InputUntouched(t *testing.T) {
	records := []record.Record{
		{Block: 30, LogCount: 1},
		{Block: 10, LogCount: 2},
		{Block: 20, LogCount: 3},
	}
	orig := append([]record.Record(nil), records...)

	if _, err := estimate.Run(records, estimate.All()); err != nil {
		t.Fatalf("Should extrapolate: %v", err)
	}

	for i := range orig {
		if records[i] != orig[i] {
			t.Fatalf("Should not reorder the caller's records.")
		}
	}
}

func Test_InsufficientData(t *testing.T) {
	type table struct {
		name    string
		records []record.Record
		rng     estimate.Range
	}

	tt := []table{
		{name: "none", records: nil, rng: estimate.All()},
		{name: "one", records: []record.Record{{Block: 1, LogCount: 1}}, rng: estimate.All()},
		{
			name:    "same block",
			records: []record.Record{{Block: 3, LogCount: 1}, {Block: 3, LogCount: 2}, {Block: 3}},
			rng:     estimate.All(),
		},
		{
			name:    "filtered out",
			records: []record.Record{{Block: 1}, {Block: 5}, {Block: 100}},
			rng:     estimate.Range{From: 2, To: 50},
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			_, err := estimate.Run(tst.records, tst.rng)
			if !errors.Is(err, estimate.ErrInsufficientData) {
				t.Fatalf("Test %s:\tShould fail with ErrInsufficientData, got %v.", tst.name, err)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_SizeModel(t *testing.T) {
	size := estimate.SizeOf(uint256.NewInt(1000), uint256.NewInt(5000), uint256.NewInt(200))

	if got := size.Uint64(); got != 64400 {
		t.Fatalf("Should compute 1000*53 + 5000 + 200*32 = 64400, got %d.", got)
	}

	if estimate.OverheadPerLog != 53 {
		t.Fatalf("Should charge 53 bytes of overhead per log, got %d.", estimate.OverheadPerLog)
	}
}

func Test_NoOverflow(t *testing.T) {
	records := []record.Record{
		{Block: 0, LogCount: math.MaxUint64, DataLen: math.MaxUint64, TopicCount: math.MaxUint64},
		{Block: math.MaxUint64, LogCount: 0},
	}

	est, err := estimate.Run(records, estimate.All())
	if err != nil {
		t.Fatalf("Should extrapolate extreme values: %v", err)
	}

	var exp uint256.Int
	exp.Mul(uint256.NewInt(math.MaxUint64), uint256.NewInt(math.MaxUint64))

	if !est.Logs.Eq(&exp) {
		t.Logf("got: %s", est.Logs.ToBig())
		t.Logf("exp: %s", exp.ToBig())
		t.Fatalf("Should hold the full 128 bit product.")
	}

	if est.Logs.IsUint64() {
		t.Fatalf("Should exceed 64 bits without wrapping.")
	}
}

func Test_Report(t *testing.T) {
	records := []record.Record{
		{Block: 0, LogCount: 10, DataLen: 100, TopicCount: 2},
		{Block: 10},
	}

	est, err := estimate.Run(records, estimate.All())
	if err != nil {
		t.Fatalf("Should extrapolate: %v", err)
	}

	rpt := est.Report()

	// 100 logs * 53 + 1000 data + 20 topics * 32
	if rpt.Size != "6940" {
		t.Fatalf("Should report size 6940, got %s.", rpt.Size)
	}

	if rpt.AvgLogs != 10 {
		t.Fatalf("Should average 10 logs per block, got %v.", rpt.AvgLogs)
	}

	if rpt.AvgSize != 694 {
		t.Fatalf("Should average 694 bytes per block, got %v.", rpt.AvgSize)
	}

	if rpt.Samples != 2 || rpt.Blocks != 10 || rpt.Logs != "100" {
		t.Fatalf("Should carry sample count and totals, got %+v.", rpt)
	}

	if s := est.String(); !strings.Contains(s, "blocks 0..10") {
		t.Fatalf("Should mention the covered span, got %q.", s)
	}
}
