package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chesscoach/explorer/internal/board"
	"github.com/chesscoach/explorer/internal/store/lsm"
)

const testPGN = `[Event "A"]
[Result "1-0"]

1. e4 e5 2. Nf3 Nc6 1-0

[Event "B"]
[Result "0-1"]

1. d4 d5 2. c4 e6 0-1

[Event "C"]
[Result "*"]

1. e4 e5 *
`

func writeTestPGN(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "games.pgn")
	if err := os.WriteFile(path, []byte(testPGN), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestPoolSubmitSynchronousFallback(t *testing.T) {
	p := NewPool(0, nil)
	defer p.Close()

	ch := p.Submit(nil, ReplayConfig{MaxPlies: 40})
	res := <-ch
	if res.Processed != 0 || res.Skipped != 0 {
		t.Errorf("empty batch result = %+v, want zero value", res)
	}
}

func TestPoolSubmitWithMultipleWorkers(t *testing.T) {
	p := NewPool(2, nil)
	defer p.Close()

	chs := make([]<-chan BatchResult, 4)
	for i := range chs {
		chs[i] = p.Submit(nil, ReplayConfig{MaxPlies: 40})
	}
	for _, ch := range chs {
		<-ch
	}
}

func TestCoordinatorIndexFile(t *testing.T) {
	path := writeTestPGN(t)
	dir := t.TempDir()

	ws, err := lsm.Open(lsm.Options{Dir: dir})
	if err != nil {
		t.Fatalf("lsm.Open: %v", err)
	}
	defer ws.Close()

	var progressCalls int
	coord := NewCoordinator(Config{
		WorkerCount:    2,
		GamesPerBatch:  1,
		StoreBatchSize: 1,
		Progress:       func(Stats) { progressCalls++ },
	})
	defer coord.Close()

	stats, err := coord.IndexFile(context.Background(), path, ws)
	if err != nil {
		t.Fatalf("IndexFile: %v", err)
	}

	if stats.GamesProcessed != 2 {
		t.Errorf("GamesProcessed = %d, want 2", stats.GamesProcessed)
	}
	if stats.GamesSkipped != 0 {
		t.Errorf("GamesSkipped = %d, want 0 (the unknown-result game never reaches the coordinator)", stats.GamesSkipped)
	}
	if progressCalls == 0 {
		t.Error("expected at least one progress callback")
	}

	pos, err := ws.GetPosition(context.Background(), startingHash(t))
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if pos.Total() != 2 {
		t.Errorf("starting position total = %d, want 2", pos.Total())
	}
}

func TestCoordinatorCancellation(t *testing.T) {
	path := writeTestPGN(t)
	dir := t.TempDir()

	ws, err := lsm.Open(lsm.Options{Dir: dir})
	if err != nil {
		t.Fatalf("lsm.Open: %v", err)
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	coord := NewCoordinator(Config{WorkerCount: 1, GamesPerBatch: 1})
	defer coord.Close()

	_, err = coord.IndexFile(ctx, path, ws)
	if err == nil {
		t.Fatal("expected an error from an already-cancelled context")
	}
}

func startingHash(t *testing.T) uint64 {
	t.Helper()
	pos, err := board.ParseFEN(board.StartFEN)
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	return pos.Hash
}
