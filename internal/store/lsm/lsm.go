// Package lsm implements the Write Store on top of BadgerDB, an embedded
// LSM engine. Badger supplies the memtable-plus-sorted-runs layout,
// byte-ordered keys, and background compaction a write-optimized
// accumulator of position and move statistics needs, without hand-rolling
// an LSM tree.
package lsm

import (
	"context"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/chesscoach/explorer/internal/explorerrors"
	"github.com/chesscoach/explorer/internal/store"
)

// Store is a BadgerDB-backed Write Store. The zero value is not usable; call
// Open to construct one.
type Store struct {
	db  *badger.DB
	log *logrus.Logger
}

// Options configures Open.
type Options struct {
	// Dir is the directory Badger persists its SSTs and value log to. It is
	// created if it does not exist.
	Dir string

	// Logger is held by the Store; no Store method writes to it. A nil
	// Logger installs logrus's standard logger.
	Logger *logrus.Logger
}

// Open opens (or creates) a Write Store directory.
func Open(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("lsm: Dir must be set")
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	badgerOpts := badger.DefaultOptions(opts.Dir)
	badgerOpts.Logger = nil // Badger's internal logger is too chatty for our progress logs.

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("lsm: open %s: %w", opts.Dir, err)
	}

	return &Store{db: db, log: log}, nil
}

// Close flushes and releases the store's resources. Safe to call more than
// once.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Flush forces Badger's value log and SSTs to durable storage.
func (s *Store) Flush(ctx context.Context) error {
	if s.db == nil {
		return explorerrors.ErrClosed
	}
	return s.db.Sync()
}

// IncrementPosition folds a single game's result into a position's aggregate
// stats.
func (s *Store) IncrementPosition(ctx context.Context, hash uint64, result store.Result) error {
	return s.BatchWrite(ctx, []store.Update{{Hash: hash, Result: result}})
}

// IncrementMove folds a single game's result into a move's aggregate stats.
// The position's own aggregate is left unchanged.
func (s *Store) IncrementMove(ctx context.Context, hash uint64, uci string, result store.Result, rating uint32, hasRating bool) error {
	if s.db == nil {
		return explorerrors.ErrClosed
	}
	var delta store.MoveStats
	delta.ApplyResult(result, rating, hasRating)
	return s.db.Update(func(txn *badger.Txn) error {
		return mergeMove(txn, hash, uci, delta)
	})
}

// BatchWrite coalesces all updates touching the same position or move in
// memory, then applies the coalesced deltas as a single read-modify-write
// transaction: either every key moves forward or none does, so partial
// batches are never observable.
func (s *Store) BatchWrite(ctx context.Context, updates []store.Update) error {
	if s.db == nil {
		return explorerrors.ErrClosed
	}
	if len(updates) == 0 {
		return nil
	}

	positionDeltas := make(map[uint64]store.PositionStats)
	moveDeltas := make(map[string]moveDelta)

	for _, u := range updates {
		pd := positionDeltas[u.Hash]
		pd.ApplyResult(u.Result)
		positionDeltas[u.Hash] = pd

		if u.UCI != "" {
			mk := moveDelta{hash: u.Hash, uci: u.UCI}
			existing, ok := moveDeltas[moveDeltaKey(u.Hash, u.UCI)]
			if ok {
				mk = existing
			}
			mk.stats.ApplyResult(u.Result, u.Rating, u.HasRating)
			moveDeltas[moveDeltaKey(u.Hash, u.UCI)] = mk
		}
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for hash, delta := range positionDeltas {
			if err := mergePosition(txn, hash, delta); err != nil {
				return fmt.Errorf("lsm: merge position %d: %w", hash, err)
			}
		}
		for _, delta := range moveDeltas {
			if err := mergeMove(txn, delta.hash, delta.uci, delta.stats); err != nil {
				return fmt.Errorf("lsm: merge move %d:%s: %w", delta.hash, delta.uci, err)
			}
		}
		return nil
	})
}

type moveDelta struct {
	hash  uint64
	uci   string
	stats store.MoveStats
}

func moveDeltaKey(hash uint64, uci string) string {
	return fmt.Sprintf("%d:%s", hash, uci)
}

func mergePosition(txn *badger.Txn, hash uint64, delta store.PositionStats) error {
	key := store.PositionKey(hash)

	current, err := readPosition(txn, key)
	if err != nil && err != explorerrors.ErrNotFound {
		return err
	}
	current.Add(delta)

	return txn.Set(key, store.EncodePositionStats(current))
}

func mergeMove(txn *badger.Txn, hash uint64, uci string, delta store.MoveStats) error {
	key := store.MoveKey(hash, uci)

	current, err := readMove(txn, key)
	if err != nil && err != explorerrors.ErrNotFound {
		return err
	}
	current.Add(delta)

	return txn.Set(key, store.EncodeMoveStats(current))
}

func readPosition(txn *badger.Txn, key []byte) (store.PositionStats, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return store.PositionStats{}, explorerrors.ErrNotFound
	}
	if err != nil {
		return store.PositionStats{}, err
	}
	var stats store.PositionStats
	err = item.Value(func(val []byte) error {
		var decodeErr error
		stats, decodeErr = store.DecodePositionStats(val)
		return decodeErr
	})
	return stats, err
}

func readMove(txn *badger.Txn, key []byte) (store.MoveStats, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return store.MoveStats{}, explorerrors.ErrNotFound
	}
	if err != nil {
		return store.MoveStats{}, err
	}
	var stats store.MoveStats
	err = item.Value(func(val []byte) error {
		var decodeErr error
		stats, decodeErr = store.DecodeMoveStats(val)
		return decodeErr
	})
	return stats, err
}

// GetPosition returns the current aggregate for a position.
func (s *Store) GetPosition(ctx context.Context, hash uint64) (store.PositionStats, error) {
	if s.db == nil {
		return store.PositionStats{}, explorerrors.ErrClosed
	}
	var stats store.PositionStats
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		stats, err = readPosition(txn, store.PositionKey(hash))
		return err
	})
	return stats, err
}

// GetMoves returns every move played from a position, sorted by total games
// descending, via a prefix range scan over the move keys sharing that hash.
func (s *Store) GetMoves(ctx context.Context, hash uint64) ([]store.KeyedMoveStats, error) {
	if s.db == nil {
		return nil, explorerrors.ErrClosed
	}

	prefix := store.MovePrefix(hash)
	var result []store.KeyedMoveStats

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			_, uci, ok := store.IsMoveKey(item.KeyCopy(nil))
			if !ok {
				continue
			}
			err := item.Value(func(val []byte) error {
				stats, err := store.DecodeMoveStats(val)
				if err != nil {
					return err
				}
				result = append(result, store.KeyedMoveStats{UCI: uci, MoveStats: stats})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Total() > result[j].Total()
	})
	return result, nil
}

// Levels reports Badger's LSM level metadata, used by the CLI `stats`
// subcommand when pointed at a Write Store instead of a Read Store.
func (s *Store) Levels() []badger.LevelInfo {
	if s.db == nil {
		return nil
	}
	return s.db.Levels()
}

// Scan performs a full forward scan over every key in key order, handing
// each raw key/value pair to visit. It is the primitive the Compactor uses
// to copy a Write Store's contents into a Read Store verbatim.
func (s *Store) Scan(visit func(key, val []byte) error) error {
	if s.db == nil {
		return explorerrors.ErrClosed
	}
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			if err := item.Value(func(val []byte) error {
				return visit(key, val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}
