package storage_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cowprotocol/etherum-log-size/foundation/logstats/record"
	"github.com/cowprotocol/etherum-log-size/foundation/logstats/storage"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// =============================================================================

func Test_AppendAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")

	first := []record.Record{
		{Block: 10, LogCount: 1, DataLen: 2, TopicCount: 3},
		{Block: 5, LogCount: 4, DataLen: 5, TopicCount: 6},
	}
	second := []record.Record{
		{Block: 10, LogCount: 7, DataLen: 8, TopicCount: 9},
	}

	t.Log("Given the need to keep samples across sampler restarts.")
	{
		write := func(recs []record.Record, expCount uint64) {
			strg, err := storage.New(path)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
			}
			t.Logf("\t%s\tShould be able to open storage.", success)

			for _, rec := range recs {
				if err := strg.Write(rec); err != nil {
					t.Fatalf("\t%s\tShould be able to write a record: %v", failed, err)
				}
			}

			if got := strg.Count(); got != expCount {
				t.Fatalf("\t%s\tShould count %d records, got %d.", failed, expCount, got)
			}
			t.Logf("\t%s\tShould count existing and new records.", success)

			if err := strg.Close(); err != nil {
				t.Fatalf("\t%s\tShould be able to close storage: %v", failed, err)
			}
		}

		write(first, 2)
		write(second, 3)

		recs, err := storage.ReadAll(path)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to read the file: %v", failed, err)
		}

		exp := append(append([]record.Record{}, first...), second...)
		if len(recs) != len(exp) {
			t.Fatalf("\t%s\tShould read %d records, got %d.", failed, len(exp), len(recs))
		}

		for i := range exp {
			if recs[i] != exp[i] {
				t.Fatalf("\t%s\tShould read records in write order: index %d got %+v exp %+v", failed, i, recs[i], exp[i])
			}
		}
		t.Logf("\t%s\tShould read every record in write order.", success)
	}
}

func Test_FlushMakesRecordsVisible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")

	strg, err := storage.New(path)
	if err != nil {
		t.Fatalf("Should be able to open storage: %v", err)
	}
	defer strg.Close()

	if err := strg.Write(record.Record{Block: 1}); err != nil {
		t.Fatalf("Should be able to write a record: %v", err)
	}

	if err := strg.Flush(); err != nil {
		t.Fatalf("Should be able to flush: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Should be able to stat the file: %v", err)
	}

	if info.Size() != record.Size {
		t.Fatalf("Should have one record on disk after flush, got %d bytes.", info.Size())
	}
}

func Test_TornFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")

	if err := os.WriteFile(path, make([]byte, record.Size+5), 0600); err != nil {
		t.Fatalf("Should be able to create the file: %v", err)
	}

	if _, err := storage.New(path); !errors.Is(err, record.ErrMalformedFile) {
		t.Fatalf("Should refuse to append to a torn file, got %v.", err)
	}

	if _, err := storage.ReadAll(path); !errors.Is(err, record.ErrMalformedFile) {
		t.Fatalf("Should refuse to read a torn file, got %v.", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Should be able to stat the file: %v", err)
	}

	if info.Size() != record.Size+5 {
		t.Fatalf("Should leave the file untouched, got %d bytes.", info.Size())
	}
}

func Test_ReadEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")

	strg, err := storage.New(path)
	if err != nil {
		t.Fatalf("Should be able to create storage: %v", err)
	}
	strg.Close()

	recs, err := storage.ReadAll(path)
	if err != nil {
		t.Fatalf("Should be able to read an empty file: %v", err)
	}

	if len(recs) != 0 {
		t.Fatalf("Should read no records, got %d.", len(recs))
	}
}

func Test_ReadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing")

	if _, err := storage.ReadAll(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Should report a missing file, got %v.", err)
	}
}
