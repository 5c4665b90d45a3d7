// Package mmapbtree implements the Read Store: a memory-mapped, read-only,
// lock-free point-query and range-scan surface. The on-disk layout is a
// header, a data section of length-prefixed sorted records, and a sparse
// index section; the sparse index is loaded once into an in-memory
// github.com/google/btree ordered tree so a lookup first narrows to a small
// byte range with an O(log n) tree descent and then scans that range
// directly out of the memory-mapped data.
package mmapbtree

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

const (
	magic      = "OXB1"
	formatVers = uint32(1)

	// headerSize is the fixed size of the file header in bytes.
	headerSize = 64

	// sparseIndexInterval is how many data records separate two sparse
	// index entries. Smaller values shrink the average scan-after-seek
	// length at the cost of a larger in-memory index.
	sparseIndexInterval = 16
)

// header is the fixed-size preamble of a Read Store data file.
type header struct {
	PositionCount uint64
	MoveCount     uint64
	DataSize      uint64
	IndexCount    uint64
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], formatVers)
	binary.LittleEndian.PutUint64(buf[8:16], h.PositionCount)
	binary.LittleEndian.PutUint64(buf[16:24], h.MoveCount)
	binary.LittleEndian.PutUint64(buf[24:32], h.DataSize)
	binary.LittleEndian.PutUint64(buf[32:40], h.IndexCount)
	binary.LittleEndian.PutUint64(buf[40:48], xxhash.Sum64(buf[0:40]))
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, fmt.Errorf("mmapbtree: truncated header: got %d bytes, want %d", len(buf), headerSize)
	}
	if string(buf[0:4]) != magic {
		return header{}, fmt.Errorf("mmapbtree: bad magic %q", buf[0:4])
	}
	if v := binary.LittleEndian.Uint32(buf[4:8]); v != formatVers {
		return header{}, fmt.Errorf("mmapbtree: unsupported format version %d", v)
	}

	wantChecksum := binary.LittleEndian.Uint64(buf[40:48])
	if got := xxhash.Sum64(buf[0:40]); got != wantChecksum {
		return header{}, fmt.Errorf("mmapbtree: header checksum mismatch: got %x, want %x", got, wantChecksum)
	}

	return header{
		PositionCount: binary.LittleEndian.Uint64(buf[8:16]),
		MoveCount:     binary.LittleEndian.Uint64(buf[16:24]),
		DataSize:      binary.LittleEndian.Uint64(buf[24:32]),
		IndexCount:    binary.LittleEndian.Uint64(buf[32:40]),
	}, nil
}

// record is the length-prefixed on-disk shape of a single key/value pair
// plus an integrity checksum: keyLen(2) key valLen(2) val checksum(8).
type record struct {
	Key []byte
	Val []byte
}

func encodeRecord(key, val []byte) []byte {
	buf := make([]byte, 2+len(key)+2+len(val)+8)
	off := 0
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(key)))
	off += 2
	copy(buf[off:], key)
	off += len(key)
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(val)))
	off += 2
	copy(buf[off:], val)
	off += len(val)
	binary.LittleEndian.PutUint64(buf[off:], xxhash.Sum64(buf[:off]))
	return buf
}

// decodeRecordAt parses a single record starting at offset off in data,
// returning the record and the offset immediately after it.
func decodeRecordAt(data []byte, off int) (record, int, error) {
	if off+2 > len(data) {
		return record{}, 0, fmt.Errorf("mmapbtree: truncated record at offset %d", off)
	}
	start := off
	keyLen := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	if off+keyLen > len(data) {
		return record{}, 0, fmt.Errorf("mmapbtree: truncated key at offset %d", off)
	}
	key := data[off : off+keyLen]
	off += keyLen

	if off+2 > len(data) {
		return record{}, 0, fmt.Errorf("mmapbtree: truncated record at offset %d", off)
	}
	valLen := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	if off+valLen > len(data) {
		return record{}, 0, fmt.Errorf("mmapbtree: truncated value at offset %d", off)
	}
	val := data[off : off+valLen]
	off += valLen

	if off+8 > len(data) {
		return record{}, 0, fmt.Errorf("mmapbtree: truncated checksum at offset %d", off)
	}
	wantChecksum := binary.LittleEndian.Uint64(data[off:])
	off += 8

	if got := xxhash.Sum64(data[start : off-8]); got != wantChecksum {
		return record{}, 0, fmt.Errorf("mmapbtree: record checksum mismatch at offset %d: got %x, want %x", start, got, wantChecksum)
	}

	return record{Key: key, Val: val}, off, nil
}

func encodeIndexEntry(key []byte, offset uint64) []byte {
	buf := make([]byte, 2+len(key)+8)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(key)))
	copy(buf[2:], key)
	binary.LittleEndian.PutUint64(buf[2+len(key):], offset)
	return buf
}

func decodeIndexEntryAt(data []byte, off int) (key []byte, offset uint64, next int, err error) {
	if off+2 > len(data) {
		return nil, 0, 0, fmt.Errorf("mmapbtree: truncated index entry at offset %d", off)
	}
	keyLen := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	if off+keyLen+8 > len(data) {
		return nil, 0, 0, fmt.Errorf("mmapbtree: truncated index entry at offset %d", off)
	}
	key = data[off : off+keyLen]
	off += keyLen
	offset = binary.LittleEndian.Uint64(data[off:])
	off += 8
	return key, offset, off, nil
}
