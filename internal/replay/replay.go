// Package replay turns a parsed game's SAN move list into the sequence of
// position-update tuples the Write Store accumulates, using internal/board
// to resolve each SAN token against the position it was played from.
package replay

import (
	"github.com/chesscoach/explorer/internal/board"
	"github.com/chesscoach/explorer/internal/pgn"
	"github.com/chesscoach/explorer/internal/store"
)

// DefaultMaxPlies is the ply cap applied when a caller does not set one:
// opening statistics past move 20 add little value relative to the index
// growth they cost.
const DefaultMaxPlies = 40

// Replay resolves a parsed game's SAN moves into a sequence of store
// updates, starting from the standard initial position. It stops at the
// first SAN token that fails to parse or resolve to a legal move, retaining
// whatever prefix it already emitted, and never considers more than
// maxPlies moves. maxPlies <= 0 selects DefaultMaxPlies.
func Replay(g pgn.ParsedGame, maxPlies int) []store.Update {
	if maxPlies <= 0 {
		maxPlies = DefaultMaxPlies
	}

	result, hasResult := toStoreResult(g.Result)
	if !hasResult {
		return nil
	}

	pos, err := board.ParseFEN(board.StartFEN)
	if err != nil {
		return nil
	}

	limit := len(g.MovesSAN)
	if limit > maxPlies {
		limit = maxPlies
	}

	updates := make([]store.Update, 0, limit)
	for i := 0; i < limit; i++ {
		san := g.MovesSAN[i]
		hashBefore := pos.Hash

		m, err := board.ParseSAN(san, pos)
		if err != nil || m == board.NoMove || !pos.IsLegal(m) {
			break
		}

		updates = append(updates, store.Update{
			Hash:      hashBefore,
			UCI:       m.String(),
			Result:    result,
			Rating:    g.AverageRating,
			HasRating: g.HasRating,
		})

		pos.MakeMove(m)
	}

	return updates
}

func toStoreResult(r pgn.Result) (store.Result, bool) {
	switch r {
	case pgn.ResultWhiteWin:
		return store.ResultWhite, true
	case pgn.ResultBlackWin:
		return store.ResultBlack, true
	case pgn.ResultDraw:
		return store.ResultDraw, true
	default:
		return 0, false
	}
}
