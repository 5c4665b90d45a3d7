package mmapbtree

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/google/btree"

	"github.com/chesscoach/explorer/internal/explorerrors"
	"github.com/chesscoach/explorer/internal/store"
)

// indexEntry is one sparse-index sample: the key a record starts with, and
// that record's byte offset into the mapped file.
type indexEntry struct {
	key    []byte
	offset uint64
}

func (a indexEntry) Less(b btree.Item) bool {
	return bytes.Compare(a.key, b.(indexEntry).key) < 0
}

// Store is a memory-mapped, read-only point-query and range-scan surface
// over a file a Writer produced. It holds no locks on its hot path: the
// underlying mmap is immutable for the life of the handle, and the sparse
// index is built once at Open and never mutated afterward.
type Store struct {
	f    *os.File
	data mmap.MMap

	hdr   header
	index *btree.BTree

	closeOnce sync.Once
}

// Open memory-maps the data file inside dir and loads its sparse index.
func Open(dir string) (*Store, error) {
	path := filepath.Join(dir, DataFileName)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmapbtree: open %s: %w", path, err)
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapbtree: mmap %s: %w", path, err)
	}

	hdr, err := decodeHeader(data)
	if err != nil {
		data.Unmap()
		f.Close()
		return nil, fmt.Errorf("mmapbtree: %s: %w", path, explorerrors.ErrCorrupt)
	}

	indexStart := headerSize + int(hdr.DataSize)
	tree := btree.New(32)
	off := indexStart
	for i := uint64(0); i < hdr.IndexCount; i++ {
		key, offset, next, err := decodeIndexEntryAt(data, off)
		if err != nil {
			data.Unmap()
			f.Close()
			return nil, fmt.Errorf("mmapbtree: %s: corrupt index: %w", path, explorerrors.ErrCorrupt)
		}
		keyCopy := append([]byte(nil), key...)
		tree.ReplaceOrInsert(indexEntry{key: keyCopy, offset: offset})
		off = next
	}

	return &Store{f: f, data: data, hdr: hdr, index: tree}, nil
}

// Close releases the memory mapping and underlying file handle. Safe to
// call more than once.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if unmapErr := s.data.Unmap(); unmapErr != nil {
			err = unmapErr
		}
		if closeErr := s.f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}

// seekOffset returns the byte offset the forward scan for key should start
// from: the offset of the largest sparse index entry whose key is <= key,
// or the start of the data section if key precedes every index entry.
func (s *Store) seekOffset(key []byte) int {
	start := headerSize
	s.index.DescendLessOrEqual(indexEntry{key: key}, func(item btree.Item) bool {
		start = int(item.(indexEntry).offset)
		return false
	})
	return start
}

// scanFrom walks records starting at byte offset off until visit returns
// false or the data section ends.
func (s *Store) scanFrom(off int, visit func(key, val []byte) bool) error {
	indexStart := headerSize + int(s.hdr.DataSize)
	for off < indexStart {
		rec, next, err := decodeRecordAt(s.data, off)
		if err != nil {
			return explorerrors.ErrCorrupt
		}
		if !visit(rec.Key, rec.Val) {
			return nil
		}
		off = next
	}
	return nil
}

// GetPosition returns a copy of a position's aggregate stats.
func (s *Store) GetPosition(hash uint64) (store.PositionStats, error) {
	target := store.PositionKey(hash)
	var found *store.PositionStats
	var scanErr error

	off := s.seekOffset(target)
	scanErr = s.scanFrom(off, func(key, val []byte) bool {
		cmp := bytes.Compare(key, target)
		if cmp < 0 {
			return true
		}
		if cmp > 0 {
			return false
		}
		stats, err := store.DecodePositionStats(val)
		if err != nil {
			scanErr = explorerrors.ErrCorrupt
			return false
		}
		found = &stats
		return false
	})
	if scanErr != nil {
		return store.PositionStats{}, scanErr
	}
	if found == nil {
		return store.PositionStats{}, explorerrors.ErrNotFound
	}
	return *found, nil
}

// RawGet returns the undecoded value bytes stored under key, without
// interpreting them as PositionStats or MoveStats. Used by the Compactor's
// verification pass to compare bytes directly against the Write Store.
func (s *Store) RawGet(key []byte) (val []byte, ok bool, err error) {
	off := s.seekOffset(key)
	var result []byte
	var found bool
	scanErr := s.scanFrom(off, func(recKey, recVal []byte) bool {
		cmp := bytes.Compare(recKey, key)
		if cmp < 0 {
			return true
		}
		if cmp == 0 {
			result = append([]byte(nil), recVal...)
			found = true
		}
		return false
	})
	if scanErr != nil {
		return nil, false, scanErr
	}
	return result, found, nil
}

// HasPosition reports whether a position was indexed, even if its stats are
// all zero.
func (s *Store) HasPosition(hash uint64) (bool, error) {
	_, err := s.GetPosition(hash)
	if err == explorerrors.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetMoves returns copies of every move played from a position, sorted by
// total games descending.
func (s *Store) GetMoves(hash uint64) ([]store.KeyedMoveStats, error) {
	prefix := store.MovePrefix(hash)
	var result []store.KeyedMoveStats
	var scanErr error

	off := s.seekOffset(prefix)
	scanErr = s.scanFrom(off, func(key, val []byte) bool {
		if bytes.HasPrefix(key, prefix) {
			moveHash, uci, ok := store.IsMoveKey(key)
			if !ok || moveHash != hash {
				return true
			}
			stats, err := store.DecodeMoveStats(val)
			if err != nil {
				scanErr = explorerrors.ErrCorrupt
				return false
			}
			result = append(result, store.KeyedMoveStats{UCI: uci, MoveStats: stats})
			return true
		}
		// Keys are sorted and MovePrefix is a fixed 9-byte prefix: once a key
		// no longer shares it, every later move key for this hash is done too.
		return bytes.Compare(key, prefix) < 0
	})
	if scanErr != nil {
		return nil, scanErr
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Total() > result[j].Total()
	})
	return result, nil
}

// Stats reports overall store size, broken down by the data and index
// segments the file is laid out as.
func (s *Store) Stats() (store.Stats, error) {
	info, err := s.f.Stat()
	if err != nil {
		return store.Stats{}, fmt.Errorf("mmapbtree: stat: %w", err)
	}
	indexBytes := info.Size() - int64(headerSize) - int64(s.hdr.DataSize)
	return store.Stats{
		PositionCount:     s.hdr.PositionCount,
		MoveCount:         s.hdr.MoveCount,
		SizeBytes:         info.Size(),
		DataSegmentBytes:  int64(s.hdr.DataSize),
		IndexSegmentBytes: indexBytes,
	}, nil
}

// Verify performs a full forward scan of the data section, revalidating
// every record's checksum and the strictly-increasing key order, without
// consulting the sparse index. The Compactor's sampled verification pass
// does not call it; that pass compares individual keys through RawGet.
func (s *Store) Verify() error {
	var last []byte
	var outOfOrder bool
	err := s.scanFrom(headerSize, func(key, val []byte) bool {
		_ = val
		if last != nil && bytes.Compare(key, last) <= 0 {
			outOfOrder = true
			return false
		}
		last = append(last[:0:0], key...)
		return true
	})
	if err != nil {
		return err
	}
	if outOfOrder {
		return explorerrors.ErrCorrupt
	}
	return nil
}
