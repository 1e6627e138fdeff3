// Package record defines the fixed width sample record written by the sampler
// and read back by the estimator. A sample file is nothing more than a
// sequence of these records with no header, footer or checksum.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
)

// Size is the number of bytes an encoded record occupies on disk.
const Size = 8 + 8 + 8 + 8

// ErrMalformedFile is returned when a buffer or file length is not a
// multiple of the record size.
var ErrMalformedFile = errors.New("malformed sample file")

// Record represents the log statistics observed for a single sampled block.
type Record struct {
	Block      uint64 `json:"block" yaml:"block"`
	LogCount   uint64 `json:"log_count" yaml:"log_count"`
	DataLen    uint64 `json:"data_len" yaml:"data_len"`
	TopicCount uint64 `json:"topic_count" yaml:"topic_count"`
}

// Summarize reduces the logs emitted in the specified block to a record.
func Summarize(block uint64, logs []types.Log) Record {
	r := Record{
		Block:    block,
		LogCount: uint64(len(logs)),
	}

	for _, log := range logs {
		r.DataLen += uint64(len(log.Data))
		r.TopicCount += uint64(len(log.Topics))
	}

	return r
}

// Encode returns the on disk representation of the record. The layout is
// [block, log_count, data_len, topic_count], each field little endian.
func Encode(r Record) [Size]byte {
	var buf [Size]byte

	binary.LittleEndian.PutUint64(buf[0:8], r.Block)
	binary.LittleEndian.PutUint64(buf[8:16], r.LogCount)
	binary.LittleEndian.PutUint64(buf[16:24], r.DataLen)
	binary.LittleEndian.PutUint64(buf[24:32], r.TopicCount)

	return buf
}

// unmarshal reads a record from the first Size bytes of src.
func unmarshal(src []byte) Record {
	return Record{
		Block:      binary.LittleEndian.Uint64(src[0:8]),
		LogCount:   binary.LittleEndian.Uint64(src[8:16]),
		DataLen:    binary.LittleEndian.Uint64(src[16:24]),
		TopicCount: binary.LittleEndian.Uint64(src[24:32]),
	}
}

// Decode converts the contents of a sample file into records. Nothing is
// decoded if the length of buf is not a multiple of Size.
func Decode(buf []byte) ([]Record, error) {
	if len(buf)%Size != 0 {
		return nil, fmt.Errorf("%d bytes is not a multiple of %d: %w", len(buf), Size, ErrMalformedFile)
	}

	records := make([]Record, 0, len(buf)/Size)
	for off := 0; off < len(buf); off += Size {
		records = append(records, unmarshal(buf[off:off+Size]))
	}

	return records, nil
}
