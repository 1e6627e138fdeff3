// Package storage handles all the lower level support for maintaining the
// sample file on disk. The file is append only: records are never updated or
// removed once written.
package storage

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/cowprotocol/etherum-log-size/foundation/logstats/record"
	"github.com/edsrzf/mmap-go"
)

// bufferRecords is the number of records held in memory between flushes.
// The buffer is a whole number of records so a flush triggered by a full
// buffer never writes part of a record.
const bufferRecords = 128

// Storage manages appending sample records to the sample file.
type Storage struct {
	path  string
	file  *os.File
	buf   *bufio.Writer
	count uint64
	mu    sync.Mutex
}

// New opens the sample file for appending, creating it if needed. Existing
// content is preserved. A file whose length is not a whole number of records
// is rejected so a torn file is never built upon.
func New(path string) (*Storage, error) {

	// Open the sample file with append so prior runs are kept.
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	if info.Size()%record.Size != 0 {
		file.Close()
		return nil, fmt.Errorf("%s holds %d bytes: %w", path, info.Size(), record.ErrMalformedFile)
	}

	strg := Storage{
		path:  path,
		file:  file,
		buf:   bufio.NewWriterSize(file, bufferRecords*record.Size),
		count: uint64(info.Size() / record.Size),
	}

	return &strg, nil
}

// Path returns the location of the sample file.
func (str *Storage) Path() string {
	return str.path
}

// Count returns the number of records in the file, including the ones
// still sitting in the write buffer.
func (str *Storage) Count() uint64 {
	str.mu.Lock()
	defer str.mu.Unlock()

	return str.count
}

// Write appends a new record to the sample file.
func (str *Storage) Write(rec record.Record) error {
	str.mu.Lock()
	defer str.mu.Unlock()

	buf := record.Encode(rec)
	if _, err := str.buf.Write(buf[:]); err != nil {
		return err
	}

	str.count++

	return nil
}

// Flush hands any buffered records to the operating system.
func (str *Storage) Flush() error {
	str.mu.Lock()
	defer str.mu.Unlock()

	return str.buf.Flush()
}

// Sync flushes buffered records and commits the file to stable storage.
func (str *Storage) Sync() error {
	str.mu.Lock()
	defer str.mu.Unlock()

	if err := str.buf.Flush(); err != nil {
		return err
	}

	return str.file.Sync()
}

// Close syncs and cleanly releases the sample file.
func (str *Storage) Close() error {
	str.mu.Lock()
	defer str.mu.Unlock()

	if err := str.buf.Flush(); err != nil {
		str.file.Close()
		return err
	}

	if err := str.file.Sync(); err != nil {
		str.file.Close()
		return err
	}

	return str.file.Close()
}

// =============================================================================

// ReadAll loads every record in the sample file at path with a single bulk
// read. Records are returned in the order they were written. The whole file
// is held in memory which is fine at 32 bytes a record.
func ReadAll(path string) ([]record.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	// An empty region can't be mapped.
	if info.Size() == 0 {
		return nil, nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	defer data.Unmap()

	return record.Decode(data)
}
