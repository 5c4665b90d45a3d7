package replay

import (
	"testing"

	"github.com/chesscoach/explorer/internal/board"
	"github.com/chesscoach/explorer/internal/pgn"
	"github.com/chesscoach/explorer/internal/store"
)

func startHash(t *testing.T) uint64 {
	t.Helper()
	pos, err := board.ParseFEN(board.StartFEN)
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	return pos.Hash
}

func TestReplayEmitsUpdatesWithPreMoveHash(t *testing.T) {
	g := pgn.ParsedGame{
		MovesSAN:      []string{"e4", "e5", "Nf3"},
		Result:        pgn.ResultWhiteWin,
		AverageRating: 2100,
		HasRating:     true,
	}

	updates := Replay(g, 40)
	if len(updates) != 3 {
		t.Fatalf("got %d updates, want 3", len(updates))
	}

	if updates[0].Hash != startHash(t) {
		t.Errorf("first update hash = %d, want the starting position's hash", updates[0].Hash)
	}
	if updates[0].UCI != "e2e4" {
		t.Errorf("first update UCI = %q, want e2e4", updates[0].UCI)
	}
	for _, u := range updates {
		if u.Result != store.ResultWhite {
			t.Errorf("update result = %v, want ResultWhite", u.Result)
		}
		if !u.HasRating || u.Rating != 2100 {
			t.Errorf("update rating = %v %v, want true 2100", u.HasRating, u.Rating)
		}
	}
}

func TestReplayStopsOnIllegalMove(t *testing.T) {
	g := pgn.ParsedGame{
		MovesSAN: []string{"e4", "e5", "Qh5", "Nc6", "Bc4", "Nf6", "Qxf7#", "Zz9"},
		Result:   pgn.ResultDraw,
	}
	updates := Replay(g, 40)
	if len(updates) != 7 {
		t.Fatalf("got %d updates, want 7 (stop before the malformed token)", len(updates))
	}
}

func TestReplayHonorsMaxPlies(t *testing.T) {
	g := pgn.ParsedGame{
		MovesSAN: []string{"e4", "e5", "Nf3", "Nc6", "Bb5", "a6"},
		Result:   pgn.ResultWhiteWin,
	}
	updates := Replay(g, 2)
	if len(updates) != 2 {
		t.Fatalf("got %d updates, want 2", len(updates))
	}
}

func TestReplaySkipsUnknownResult(t *testing.T) {
	g := pgn.ParsedGame{
		MovesSAN: []string{"e4", "e5"},
		Result:   pgn.ResultUnknown,
	}
	if updates := Replay(g, 40); updates != nil {
		t.Errorf("got %d updates, want nil for an unknown result", len(updates))
	}
}
