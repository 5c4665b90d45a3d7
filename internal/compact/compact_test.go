package compact

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/chesscoach/explorer/internal/explorerrors"
	"github.com/chesscoach/explorer/internal/store"
	"github.com/chesscoach/explorer/internal/store/lsm"
	"github.com/chesscoach/explorer/internal/store/mmapbtree"
)

func TestRunCopiesAllRecords(t *testing.T) {
	dir := t.TempDir()
	writeDir := filepath.Join(dir, "write")
	readDir := filepath.Join(dir, "read")

	ws, err := lsm.Open(lsm.Options{Dir: writeDir})
	if err != nil {
		t.Fatalf("lsm.Open: %v", err)
	}

	ctx := context.Background()
	if err := ws.IncrementPosition(ctx, 42, store.ResultWhite); err != nil {
		t.Fatalf("IncrementPosition: %v", err)
	}
	if err := ws.IncrementMove(ctx, 42, "e2e4", store.ResultWhite, 2100, true); err != nil {
		t.Fatalf("IncrementMove: %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	result, err := Run(writeDir, readDir, Options{
		VerifyFraction: 1.0,
		Rand:           rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.PositionsWritten != 1 || result.MovesWritten != 1 {
		t.Errorf("Result = %+v, want 1 position and 1 move", result)
	}
	if result.Mismatched != 0 {
		t.Errorf("Mismatched = %d, want 0", result.Mismatched)
	}

	rs, err := mmapbtree.Open(readDir)
	if err != nil {
		t.Fatalf("mmapbtree.Open: %v", err)
	}
	defer rs.Close()

	pos, err := rs.GetPosition(42)
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if pos.White != 1 {
		t.Errorf("GetPosition(42).White = %d, want 1", pos.White)
	}

	moves, err := rs.GetMoves(42)
	if err != nil {
		t.Fatalf("GetMoves: %v", err)
	}
	if len(moves) != 1 || moves[0].UCI != "e2e4" {
		t.Fatalf("GetMoves(42) = %+v, want one e2e4 entry", moves)
	}

	if _, err := rs.GetPosition(999); err != explorerrors.ErrNotFound {
		t.Errorf("GetPosition(999) = %v, want ErrNotFound", err)
	}
}
