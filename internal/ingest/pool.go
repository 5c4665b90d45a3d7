// Package ingest implements the Worker Pool and Ingestion Coordinator that
// drive PGN files through the Move Replayer into a Write Store.
package ingest

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/chesscoach/explorer/internal/pgn"
	"github.com/chesscoach/explorer/internal/replay"
	"github.com/chesscoach/explorer/internal/store"
)

// ReplayConfig carries the per-game replay tunables workers need.
type ReplayConfig struct {
	MaxPlies int
}

// BatchResult is what processing one batch of games produces.
type BatchResult struct {
	Updates   []store.Update
	Processed int
	Skipped   int
}

// process runs the Move Replayer over every game in a batch. A game that
// fails to replay into at least one update is isolated to this batch: it
// increments Skipped and processing continues with the next game.
func process(batch []pgn.ParsedGame, cfg ReplayConfig) BatchResult {
	var res BatchResult
	for _, g := range batch {
		updates := replay.Replay(g, cfg.MaxPlies)
		if len(updates) == 0 {
			res.Skipped++
			continue
		}
		res.Updates = append(res.Updates, updates...)
		res.Processed++
	}
	return res
}

type job struct {
	batch    []pgn.ParsedGame
	cfg      ReplayConfig
	resultCh chan BatchResult
}

// Pool is a fixed pool of W workers executing the Move Replayer on game
// batches in parallel. Workers are stateless: a Pool holds no data besides
// its job queue and worker count.
type Pool struct {
	workers int
	jobs    chan job
	log     *logrus.Logger

	cancel context.CancelFunc
}

// DefaultWorkerCount returns max(1, n-1) for an n-CPU machine, leaving one
// core free for the coordinator and the OS.
func DefaultWorkerCount(numCPU int) int {
	if numCPU <= 1 {
		return 1
	}
	return numCPU - 1
}

// NewPool starts a pool of `workers` goroutines consuming submitted batches.
// workers <= 0 falls back to running every batch synchronously on the
// submitting goroutine, mirroring the spec's "OS threads unavailable"
// fallback without changing a single result byte.
func NewPool(workers int, log *logrus.Logger) *Pool {
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &Pool{workers: workers, log: log}
	if workers <= 0 {
		return p
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.jobs = make(chan job)

	for i := 0; i < workers; i++ {
		go p.runWorker(ctx, i)
	}
	return p
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			j.resultCh <- process(j.batch, j.cfg)
		}
	}
}

// Submit hands a batch to the pool and returns a channel the result arrives
// on once a free worker has processed it. Submissions beyond pool capacity
// block until a worker frees up, giving FIFO handoff (results themselves
// may still complete out of order once more than one worker is running).
func (p *Pool) Submit(batch []pgn.ParsedGame, cfg ReplayConfig) <-chan BatchResult {
	resultCh := make(chan BatchResult, 1)
	if p.jobs == nil {
		resultCh <- process(batch, cfg)
		return resultCh
	}
	p.jobs <- job{batch: batch, cfg: cfg, resultCh: resultCh}
	return resultCh
}

// Close stops all worker goroutines. Outstanding Submit results already
// handed out remain valid; Close does not wait for them.
func (p *Pool) Close() {
	if p.cancel != nil {
		p.cancel()
	}
}

// outstandingLimiter bounds the number of futures a Coordinator allows to be
// in flight at once, preventing unbounded memory growth when parsing
// outruns processing or vice versa.
type outstandingLimiter struct {
	sem *semaphore.Weighted
}

func newOutstandingLimiter(max int64) *outstandingLimiter {
	return &outstandingLimiter{sem: semaphore.NewWeighted(max)}
}

func (l *outstandingLimiter) acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

func (l *outstandingLimiter) release() {
	l.sem.Release(1)
}
