package store

import "context"

// WriteStore is the narrow capability the Ingestion Coordinator needs: a
// write-optimized, append-friendly accumulator of position and move
// statistics. Implementations must make pending-but-unflushed writes
// visible to reads within the same process.
type WriteStore interface {
	// IncrementPosition folds a single game's result into a position's
	// aggregate stats, creating the record on first observation.
	IncrementPosition(ctx context.Context, hash uint64, result Result) error

	// IncrementMove folds a single game's result into a move's aggregate
	// stats, creating the record on first observation.
	IncrementMove(ctx context.Context, hash uint64, uci string, result Result, rating uint32, hasRating bool) error

	// BatchWrite atomically accumulates a set of updates. Within one batch,
	// updates touching the same position or move are coalesced in memory
	// before being applied; a failed batch leaves the store exactly as it
	// was before the call.
	BatchWrite(ctx context.Context, updates []Update) error

	// GetPosition returns the current aggregate for a position, or
	// explorerrors.ErrNotFound if none exists.
	GetPosition(ctx context.Context, hash uint64) (PositionStats, error)

	// GetMoves returns every move played from a position, sorted by total
	// games descending.
	GetMoves(ctx context.Context, hash uint64) ([]KeyedMoveStats, error)

	// Flush forces any buffered writes to durable storage.
	Flush(ctx context.Context) error

	// Close flushes and releases the store's resources. Close is safe to
	// call more than once.
	Close() error
}

// ReadStore is the narrow capability the Query Layer needs: a read-only,
// memory-mapped, lock-free point-query and range-scan surface over the
// records a Compactor produced.
type ReadStore interface {
	// GetPosition returns a copy of a position's aggregate stats, or
	// explorerrors.ErrNotFound if the position was never indexed.
	GetPosition(hash uint64) (PositionStats, error)

	// GetMoves returns copies of every move played from a position, sorted
	// by total games descending.
	GetMoves(hash uint64) ([]KeyedMoveStats, error)

	// HasPosition reports whether a position was indexed, distinguishing
	// "not indexed" from "indexed with zero games" for callers that care.
	HasPosition(hash uint64) (bool, error)

	// Stats reports overall store size.
	Stats() (Stats, error)

	// Close releases the memory mapping and underlying file handle.
	Close() error
}

// KeyedMoveStats pairs a MoveStats with the UCI move it was keyed under,
// since the UCI string lives in the store key rather than the value.
type KeyedMoveStats struct {
	UCI string
	MoveStats
}

// Update is a single position-update tuple produced by the Move Replayer:
// a position hash, the move played from it in UCI, the game's result, and
// the players' average rating if known.
type Update struct {
	Hash      uint64
	UCI       string
	Result    Result
	Rating    uint32
	HasRating bool
}

// Stats summarizes a Read Store's size for the CLI `stats` subcommand.
type Stats struct {
	PositionCount uint64
	MoveCount     uint64
	SizeBytes     int64

	// DataSegmentBytes and IndexSegmentBytes break SizeBytes down by the
	// two sections a Read Store file is laid out as.
	DataSegmentBytes  int64
	IndexSegmentBytes int64
}
