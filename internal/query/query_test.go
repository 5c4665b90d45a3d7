package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chesscoach/explorer/internal/board"
	"github.com/chesscoach/explorer/internal/openingbook"
	"github.com/chesscoach/explorer/internal/store"
	"github.com/chesscoach/explorer/internal/store/lsm"
	"github.com/chesscoach/explorer/internal/store/mmapbtree"
)

func buildReadStore(t *testing.T) store.ReadStore {
	t.Helper()
	dir := t.TempDir()
	writeDir := filepath.Join(dir, "write")
	readDir := filepath.Join(dir, "read")

	ws, err := lsm.Open(lsm.Options{Dir: writeDir})
	if err != nil {
		t.Fatalf("lsm.Open: %v", err)
	}

	pos, err := board.ParseFEN(board.StartFEN)
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := ws.IncrementMove(ctx, pos.Hash, "e2e4", store.ResultWhite, 2100, true); err != nil {
			t.Fatalf("IncrementMove: %v", err)
		}
	}
	if err := ws.IncrementMove(ctx, pos.Hash, "d2d4", store.ResultDraw, 2000, true); err != nil {
		t.Fatalf("IncrementMove: %v", err)
	}
	if err := ws.IncrementPosition(ctx, pos.Hash, store.ResultWhite); err != nil {
		t.Fatalf("IncrementPosition: %v", err)
	}
	if err := ws.IncrementPosition(ctx, pos.Hash, store.ResultWhite); err != nil {
		t.Fatalf("IncrementPosition: %v", err)
	}
	if err := ws.IncrementPosition(ctx, pos.Hash, store.ResultWhite); err != nil {
		t.Fatalf("IncrementPosition: %v", err)
	}
	if err := ws.IncrementPosition(ctx, pos.Hash, store.ResultDraw); err != nil {
		t.Fatalf("IncrementPosition: %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	w, err := mmapbtree.Create(readDir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rescan, err := lsm.Open(lsm.Options{Dir: writeDir})
	if err != nil {
		t.Fatalf("reopen write store: %v", err)
	}
	defer rescan.Close()
	if err := rescan.Scan(func(key, val []byte) error {
		return w.Append(key, append([]byte(nil), val...))
	}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if _, err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	rs, err := mmapbtree.Open(readDir)
	if err != nil {
		t.Fatalf("mmapbtree.Open: %v", err)
	}
	t.Cleanup(func() { rs.Close() })
	return rs
}

func TestQueryReturnsMovesSortedWithSAN(t *testing.T) {
	rs := buildReadStore(t)

	result, err := Query(board.StartFEN, rs, nil, Options{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if result.Database != "local" {
		t.Errorf("Database = %q, want local", result.Database)
	}
	if result.TopGames == nil || len(result.TopGames) != 0 {
		t.Errorf("TopGames = %v, want an empty non-nil slice", result.TopGames)
	}
	if len(result.Moves) != 2 {
		t.Fatalf("got %d moves, want 2", len(result.Moves))
	}
	if result.Moves[0].UCI != "e2e4" || result.Moves[0].SAN != "e4" {
		t.Errorf("top move = %+v, want e2e4/e4 first (most games)", result.Moves[0])
	}
	if result.Moves[0].AverageRating != 2100 {
		t.Errorf("top move rating = %d, want 2100", result.Moves[0].AverageRating)
	}
}

func TestQueryEmptyOnMalformedFEN(t *testing.T) {
	rs := buildReadStore(t)
	result, err := Query("not a fen", rs, nil, Options{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(result.Moves) != 0 || result.Stats.TotalGames != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestQueryEmptyOnUnindexedPosition(t *testing.T) {
	rs := buildReadStore(t)
	const sicilian = "rnbqkbnr/pp1ppppp/8/2p5/4P3/8/PPPP1PPP/RNBQKBNR w KQkq c6 0 2"
	result, err := Query(sicilian, rs, nil, Options{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(result.Moves) != 0 {
		t.Errorf("expected no moves for an unindexed position, got %+v", result.Moves)
	}
}

func TestQueryAttachesOpeningName(t *testing.T) {
	rs := buildReadStore(t)
	book := openingbook.Default()

	result, err := Query(board.StartFEN, rs, book, Options{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if result.Opening == nil {
		t.Fatal("expected an opening name for the starting position")
	}
	if result.Opening.Name != "Start Position" {
		t.Errorf("Opening.Name = %q, want %q", result.Opening.Name, "Start Position")
	}
}
