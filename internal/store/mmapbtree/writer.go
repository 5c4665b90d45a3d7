package mmapbtree

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chesscoach/explorer/internal/store"
)

// DataFileName is the single data file a Read Store directory contains.
const DataFileName = "data.oxb"

// Writer builds a Read Store data file from a stream of key/value pairs
// that the caller must present in strictly increasing key order — exactly
// the order a full forward scan of a Write Store yields. It is the only
// way to produce a file mmapbtree.Open can read.
type Writer struct {
	f   *os.File
	buf *bufio.Writer

	dataOffset    uint64 // bytes written to the data section so far
	recordCount   uint64
	positionCount uint64
	moveCount     uint64

	index    bytes.Buffer
	indexLen uint64

	lastKey []byte
	closed  bool
}

// Create creates a new Read Store directory at dir (if needed) and opens its
// data file for writing.
func Create(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mmapbtree: mkdir %s: %w", dir, err)
	}

	path := filepath.Join(dir, DataFileName)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("mmapbtree: create %s: %w", path, err)
	}

	// Header is rewritten at Finish once final counts are known; reserve
	// its space up front so the data section starts at a fixed offset.
	if _, err := f.Write(make([]byte, headerSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapbtree: reserve header: %w", err)
	}

	return &Writer{
		f:          f,
		buf:        bufio.NewWriterSize(f, 1<<20),
		dataOffset: 0,
	}, nil
}

// Append writes one key/value pair. Keys must be strictly increasing; out-of-
// order keys return an error without writing anything.
func (w *Writer) Append(key, val []byte) error {
	if w.lastKey != nil && bytes.Compare(key, w.lastKey) <= 0 {
		return fmt.Errorf("mmapbtree: keys must be strictly increasing: %x did not follow %x", key, w.lastKey)
	}

	offsetInFile := uint64(headerSize) + w.dataOffset
	rec := encodeRecord(key, val)
	if _, err := w.buf.Write(rec); err != nil {
		return fmt.Errorf("mmapbtree: write record: %w", err)
	}

	if w.recordCount%sparseIndexInterval == 0 {
		w.index.Write(encodeIndexEntry(key, offsetInFile))
		w.indexLen++
	}

	if _, ok := store.IsPositionKey(key); ok {
		w.positionCount++
	} else if _, _, ok := store.IsMoveKey(key); ok {
		w.moveCount++
	}

	w.dataOffset += uint64(len(rec))
	w.recordCount++
	w.lastKey = append(w.lastKey[:0], key...)

	return nil
}

// Result reports what a completed compaction wrote.
type Result struct {
	PositionsWritten uint64
	MovesWritten     uint64
}

// Finish flushes the data section, appends the sparse index, backfills the
// header, and fsyncs the file.
func (w *Writer) Finish() (Result, error) {
	if w.closed {
		return Result{}, fmt.Errorf("mmapbtree: Finish called on a closed writer")
	}
	w.closed = true
	defer w.f.Close()

	if err := w.buf.Flush(); err != nil {
		return Result{}, fmt.Errorf("mmapbtree: flush data section: %w", err)
	}
	if _, err := w.f.Write(w.index.Bytes()); err != nil {
		return Result{}, fmt.Errorf("mmapbtree: write index section: %w", err)
	}

	hdr := encodeHeader(header{
		PositionCount: w.positionCount,
		MoveCount:     w.moveCount,
		DataSize:      w.dataOffset,
		IndexCount:    w.indexLen,
	})
	if _, err := w.f.WriteAt(hdr, 0); err != nil {
		return Result{}, fmt.Errorf("mmapbtree: write header: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return Result{}, fmt.Errorf("mmapbtree: fsync: %w", err)
	}

	return Result{PositionsWritten: w.positionCount, MovesWritten: w.moveCount}, nil
}

// Abort discards a partially written file instead of finishing it. A
// failure mid-way leaves the target directory invalid; the caller deletes
// it and retries rather than trying to resume.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.f.Close()
}
