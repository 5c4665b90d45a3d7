package lsm

import (
	"context"
	"testing"

	"github.com/chesscoach/explorer/internal/explorerrors"
	"github.com/chesscoach/explorer/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBatchWriteCoalescesDuplicateKeys(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	updates := []store.Update{
		{Hash: 1, Result: store.ResultWhite},
		{Hash: 1, UCI: "e2e4", Result: store.ResultWhite, Rating: 2000, HasRating: true},
		{Hash: 1, UCI: "e2e4", Result: store.ResultDraw, Rating: 2200, HasRating: true},
		{Hash: 1, Result: store.ResultDraw},
	}
	if err := s.BatchWrite(ctx, updates); err != nil {
		t.Fatalf("BatchWrite: %v", err)
	}

	pos, err := s.GetPosition(ctx, 1)
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	// Every update counts toward its position, including the two that also
	// name a move.
	if pos.White != 2 || pos.Draws != 2 || pos.Black != 0 {
		t.Fatalf("position stats = %+v, want White:2 Draws:2", pos)
	}

	moves, err := s.GetMoves(ctx, 1)
	if err != nil {
		t.Fatalf("GetMoves: %v", err)
	}
	if len(moves) != 1 || moves[0].UCI != "e2e4" {
		t.Fatalf("moves = %+v, want one e2e4 entry", moves)
	}
	if moves[0].White != 1 || moves[0].Draws != 1 {
		t.Fatalf("move stats = %+v, want White:1 Draws:1", moves[0].MoveStats)
	}
}

func TestGetPositionNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetPosition(context.Background(), 999); err != explorerrors.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestBatchWriteIsAllOrNothingAcrossRepeatedCalls(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.BatchWrite(ctx, []store.Update{{Hash: 7, Result: store.ResultBlack}}); err != nil {
			t.Fatalf("BatchWrite %d: %v", i, err)
		}
	}

	pos, err := s.GetPosition(ctx, 7)
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if pos.Black != 3 {
		t.Fatalf("Black = %d, want 3", pos.Black)
	}
}

func TestScanVisitsEveryKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.BatchWrite(ctx, []store.Update{
		{Hash: 1, Result: store.ResultWhite},
		{Hash: 1, UCI: "e2e4", Result: store.ResultWhite},
		{Hash: 2, Result: store.ResultDraw},
	}); err != nil {
		t.Fatalf("BatchWrite: %v", err)
	}

	var keys [][]byte
	err := s.Scan(func(key, val []byte) error {
		keys = append(keys, append([]byte(nil), key...))
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("scanned %d keys, want 3", len(keys))
	}
}

func TestOperationsOnClosedStoreReturnErrClosed(t *testing.T) {
	s := openTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := s.GetPosition(context.Background(), 1); err != explorerrors.ErrClosed {
		t.Fatalf("GetPosition after close = %v, want ErrClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
