// Package explorerrors defines the sentinel errors shared across the
// storage, ingestion, and query layers so callers can distinguish failure
// classes with errors.Is instead of string matching.
package explorerrors

import "errors"

var (
	// ErrNotFound is returned when a lookup finds no record for a key.
	// It is not itself a failure: a missing position is an expected,
	// non-exceptional outcome.
	ErrNotFound = errors.New("explorer: not found")

	// ErrCorrupt indicates a checksum mismatch or key-ordering violation
	// detected while scanning a Read Store. The store must be rebuilt by
	// compaction; it cannot be repaired in place.
	ErrCorrupt = errors.New("explorer: store corrupt")

	// ErrClosed is returned by any operation attempted on a store handle
	// after Close has been called.
	ErrClosed = errors.New("explorer: store closed")

	// ErrCancelled is returned by ingestion when a cancellation signal
	// interrupts indexing before the input is exhausted.
	ErrCancelled = errors.New("explorer: ingestion cancelled")
)
