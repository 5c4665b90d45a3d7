package board

import "testing"

// perft counts leaf nodes reachable at depth plies, the standard exhaustive
// check that move generation, make and unmake agree with each other. It also
// recomputes the Zobrist hash after each unmake and fails fast on drift,
// since the replay domain relies on MakeMove/UnmakeMove keeping Position.Hash
// incremental rather than recomputing it on every ply.
func perft(t *testing.T, p *Position, depth int) int64 {
	t.Helper()
	if depth == 0 {
		return 1
	}

	moves := p.GenerateLegalMoves()
	if depth == 1 {
		return int64(moves.Len())
	}

	var nodes int64
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		before := p.Hash
		undo := p.MakeMove(m)
		nodes += perft(t, p, depth-1)
		p.UnmakeMove(m, undo)
		if p.Hash != before {
			t.Fatalf("hash mismatch after unmaking %s: got %d, want %d", m, p.Hash, before)
		}
		if recomputed := p.ComputeHash(); recomputed != before {
			t.Fatalf("recomputed hash after unmaking %s: got %d, want %d", m, recomputed, before)
		}
	}
	return nodes
}

func TestPerftNodeCounts(t *testing.T) {
	cases := []struct {
		name  string
		fen   string // empty means the standard starting position
		depth int
		want  int64
	}{
		{name: "starting position", depth: 1, want: 20},
		{name: "starting position", depth: 2, want: 400},
		{name: "starting position", depth: 3, want: 8902},
		{name: "starting position", depth: 4, want: 197281},

		// Kiwipete: dense middlegame position exercising castling, promotion
		// and pinned-piece edge cases together.
		{name: "kiwipete", fen: "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -", depth: 1, want: 48},
		{name: "kiwipete", fen: "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -", depth: 2, want: 2039},
		{name: "kiwipete", fen: "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -", depth: 3, want: 97862},

		// En passant and discovered-check edge cases.
		{name: "position 3", fen: "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - -", depth: 1, want: 14},
		{name: "position 3", fen: "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - -", depth: 2, want: 191},
		{name: "position 3", fen: "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - -", depth: 3, want: 2812},
		{name: "position 3", fen: "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - -", depth: 4, want: 43238},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var pos *Position
			if tc.fen == "" {
				pos = NewPosition()
			} else {
				var err error
				pos, err = ParseFEN(tc.fen)
				if err != nil {
					t.Fatalf("ParseFEN(%q): %v", tc.fen, err)
				}
			}

			got := perft(t, pos, tc.depth)
			if got != tc.want {
				t.Errorf("perft(depth=%d) = %d, want %d", tc.depth, got, tc.want)
			}
		})
	}
}

// TestPerftEnPassantHorizontalPin covers a capture that looks legal in
// isolation but would expose the king to a rook along the vacated rank once
// both the capturing and captured pawns leave the fourth rank.
func TestPerftEnPassantHorizontalPin(t *testing.T) {
	pos, err := ParseFEN("8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}

	moves := pos.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		if m := moves.Get(i); m.IsEnPassant() {
			t.Errorf("en passant move %s should be illegal under the horizontal pin", m)
		}
	}

	cases := []struct {
		depth int
		want  int64
	}{
		{1, 6},
		{2, 94},
	}
	for _, tc := range cases {
		if got := perft(t, pos, tc.depth); got != tc.want {
			t.Errorf("perft(depth=%d) = %d, want %d", tc.depth, got, tc.want)
		}
	}
}
