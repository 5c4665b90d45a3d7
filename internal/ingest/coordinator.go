package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chesscoach/explorer/internal/explorerrors"
	"github.com/chesscoach/explorer/internal/pgn"
	"github.com/chesscoach/explorer/internal/store"
)

// Config enumerates the tunables an ingestion run is parameterized by.
type Config struct {
	MinRating       uint32
	MaxPliesPerGame int
	WorkerCount     int
	GamesPerBatch   int
	StoreBatchSize  int
	Progress        func(Stats)
	Logger          *logrus.Logger
}

// DefaultGamesPerBatch and DefaultStoreBatchSize match the pacing a coordinator
// uses when a caller leaves these tunables unset.
const (
	DefaultGamesPerBatch  = 500
	DefaultStoreBatchSize = 10000
)

func (c *Config) applyDefaults() {
	if c.GamesPerBatch <= 0 {
		c.GamesPerBatch = DefaultGamesPerBatch
	}
	if c.StoreBatchSize <= 0 {
		c.StoreBatchSize = DefaultStoreBatchSize
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 1
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
}

// Stats reports an ingestion run's progress or final outcome.
type Stats struct {
	GamesProcessed  uint64
	GamesSkipped    uint64
	PositionsIndexed uint64
	ElapsedMS       int64
	GamesPerSecond  float64
	WorkersUsed     int
}

// Coordinator pulls games from a PGN Streamer, distributes batches to a
// Worker Pool, merges worker outputs, and serializes the result into a
// Write Store. It is the sole writer to the store for the duration of a run.
type Coordinator struct {
	pool *Pool
	cfg  Config
}

// NewCoordinator constructs a Coordinator backed by a freshly started pool
// of cfg.WorkerCount workers.
func NewCoordinator(cfg Config) *Coordinator {
	cfg.applyDefaults()
	return &Coordinator{pool: NewPool(cfg.WorkerCount, cfg.Logger), cfg: cfg}
}

// Close releases the coordinator's worker pool.
func (c *Coordinator) Close() {
	c.pool.Close()
}

type pendingBatch struct {
	resultCh <-chan BatchResult
}

// IndexFile streams pgnPath through the Move Replayer and accumulates
// results into ws. If ctx is cancelled before the file is exhausted,
// IndexFile stops accepting new games, awaits in-flight workers, flushes
// already-collected updates, and returns partial stats alongside
// explorerrors.ErrCancelled. Already-written state remains valid either way.
func (c *Coordinator) IndexFile(ctx context.Context, pgnPath string, ws store.WriteStore) (Stats, error) {
	start := time.Now()
	log := c.cfg.Logger.WithField("component", "ingestion_coordinator").WithField("pgn_path", pgnPath)

	limiter := newOutstandingLimiter(int64(2 * c.cfg.WorkerCount))
	replayCfg := ReplayConfig{MaxPlies: c.cfg.MaxPliesPerGame}

	var (
		pending       []pendingBatch
		gameBuf       []pgn.ParsedGame
		updateBuf     []store.Update
		stats         Stats
		cancelled     bool
		flushErr      error
	)

	drainOldest := func() error {
		if len(pending) == 0 {
			return nil
		}
		p := pending[0]
		pending = pending[1:]
		result := <-p.resultCh
		limiter.release()

		stats.GamesProcessed += uint64(result.Processed)
		stats.GamesSkipped += uint64(result.Skipped)
		updateBuf = append(updateBuf, result.Updates...)

		if len(updateBuf) >= c.cfg.StoreBatchSize {
			return c.flushUpdates(ctx, ws, &updateBuf, &stats, log)
		}
		return nil
	}

	submitBatch := func(batch []pgn.ParsedGame) error {
		if err := limiter.acquire(ctx); err != nil {
			return err
		}
		pending = append(pending, pendingBatch{resultCh: c.pool.Submit(batch, replayCfg)})
		if len(pending) >= 2*c.cfg.WorkerCount {
			return drainOldest()
		}
		return nil
	}

	streamer := &pgn.Streamer{
		Filter: pgn.Filter{MinRating: c.cfg.MinRating},
	}

	streamErr := streamer.StreamFile(pgnPath, func(g pgn.ParsedGame) error {
		if ctx.Err() != nil {
			cancelled = true
			return ctx.Err()
		}

		gameBuf = append(gameBuf, g)
		if len(gameBuf) < c.cfg.GamesPerBatch {
			return nil
		}
		batch := gameBuf
		gameBuf = nil
		return submitBatch(batch)
	})

	if streamErr != nil && !errors.Is(streamErr, context.Canceled) && !errors.Is(streamErr, context.DeadlineExceeded) {
		return stats, fmt.Errorf("ingest: stream %s: %w", pgnPath, streamErr)
	}
	if streamErr != nil {
		cancelled = true
	}

	// Flush whatever is left, even on cancellation: the spec requires
	// in-flight work to finish and already-collected updates to persist.
	if !cancelled && len(gameBuf) > 0 {
		if err := submitBatch(gameBuf); err != nil {
			cancelled = true
		}
	}

	for len(pending) > 0 {
		if err := drainOldest(); err != nil {
			flushErr = err
			break
		}
	}

	if len(updateBuf) > 0 {
		if err := c.flushUpdates(ctx, ws, &updateBuf, &stats, log); err != nil {
			flushErr = err
		}
	}
	if err := ws.Flush(context.Background()); err != nil && flushErr == nil {
		flushErr = err
	}

	elapsed := time.Since(start)
	stats.ElapsedMS = elapsed.Milliseconds()
	stats.WorkersUsed = c.cfg.WorkerCount
	if elapsed > 0 {
		stats.GamesPerSecond = float64(stats.GamesProcessed) / elapsed.Seconds()
	}

	if flushErr != nil {
		return stats, fmt.Errorf("ingest: %s: %w", pgnPath, flushErr)
	}
	if cancelled {
		log.WithField("games_processed", stats.GamesProcessed).Warn("ingestion cancelled")
		return stats, explorerrors.ErrCancelled
	}

	log.WithFields(logrus.Fields{
		"games_processed": stats.GamesProcessed,
		"games_skipped":   stats.GamesSkipped,
		"elapsed_ms":      stats.ElapsedMS,
	}).Info("ingestion complete")
	return stats, nil
}

func (c *Coordinator) flushUpdates(ctx context.Context, ws store.WriteStore, updateBuf *[]store.Update, stats *Stats, log *logrus.Entry) error {
	if len(*updateBuf) == 0 {
		return nil
	}
	if err := ws.BatchWrite(ctx, *updateBuf); err != nil {
		return fmt.Errorf("batch_write: %w", err)
	}
	stats.PositionsIndexed += countDistinctPositions(*updateBuf)
	*updateBuf = (*updateBuf)[:0]

	if c.cfg.Progress != nil {
		c.cfg.Progress(*stats)
	}
	log.WithField("games_processed", stats.GamesProcessed).Debug("store batch flushed")
	return nil
}

func countDistinctPositions(updates []store.Update) uint64 {
	seen := make(map[uint64]struct{}, len(updates))
	for _, u := range updates {
		seen[u.Hash] = struct{}{}
	}
	return uint64(len(seen))
}
