// Package query implements the point-query pipeline that turns a FEN into a
// Lichess-Opening-Explorer-compatible JSON payload: hash the position, read
// its aggregates off a Read Store, convert UCI to SAN, and attach an
// opening name.
package query

import (
	"github.com/chesscoach/explorer/internal/board"
	"github.com/chesscoach/explorer/internal/explorerrors"
	"github.com/chesscoach/explorer/internal/openingbook"
	"github.com/chesscoach/explorer/internal/store"
)

// DefaultLimit caps the number of moves returned when a caller does not set
// one.
const DefaultLimit = 12

// Options configures a single query.
type Options struct {
	Limit int
}

// Opening names a named sequence reachable at a position.
type Opening struct {
	ECO  string `json:"eco"`
	Name string `json:"name"`
}

// MoveResult is one candidate move with its raw counts and derived stats,
// shaped to match the fields the Lichess Opening Explorer HTTP API returns.
type MoveResult struct {
	UCI            string   `json:"uci"`
	SAN            string   `json:"san"`
	White          uint32   `json:"white"`
	Draws          uint32   `json:"draws"`
	Black          uint32   `json:"black"`
	AverageRating  uint32   `json:"averageRating"`
	Opening        *Opening `json:"opening,omitempty"`
	TotalGames     uint64   `json:"totalGames"`
	PlayRate       float64  `json:"playRate"`
	WhiteWinPct    float64  `json:"whiteWinPercent"`
	DrawPct        float64  `json:"drawPercent"`
	BlackWinPct    float64  `json:"blackWinPercent"`
}

// Stats are the position-level derived percentages.
type Stats struct {
	TotalGames      uint64  `json:"totalGames"`
	WhiteWinPercent float64 `json:"whiteWinPercent"`
	DrawPercent     float64 `json:"drawPercent"`
	BlackWinPercent float64 `json:"blackWinPercent"`
}

// Result is the full response of a single query, shaped to serialize the
// way the Lichess Opening Explorer HTTP API does, augmented with the
// computed Stats and a `database` marker distinguishing this backend.
type Result struct {
	White    uint32       `json:"white"`
	Draws    uint32       `json:"draws"`
	Black    uint32       `json:"black"`
	Moves    []MoveResult `json:"moves"`
	TopGames []struct{}   `json:"topGames"`
	Opening  *Opening     `json:"opening,omitempty"`
	Stats    Stats        `json:"stats"`
	Database string       `json:"database"`
}

// empty returns the zero-games result a missing or malformed position
// queries to; callers never receive an error for data absence.
func empty() Result {
	return Result{TopGames: []struct{}{}, Database: "local"}
}

// Query runs the full pipeline against a Read Store, optionally attaching
// opening names from book (a nil book means no names are attached). A
// malformed FEN or an unindexed position both produce the empty result, not
// an error; only Read Store I/O faults are returned as errors.
func Query(fen string, rs store.ReadStore, book *openingbook.Book, opts Options) (Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	pos, err := board.ParseFEN(fen)
	if err != nil {
		return empty(), nil
	}

	posStats, err := rs.GetPosition(pos.Hash)
	if err == explorerrors.ErrNotFound {
		return empty(), nil
	}
	if err != nil {
		return Result{}, err
	}
	if posStats.IsZero() {
		return empty(), nil
	}

	moves, err := rs.GetMoves(pos.Hash)
	if err != nil {
		return Result{}, err
	}
	if len(moves) > limit {
		moves = moves[:limit]
	}

	total := posStats.Total()
	res := Result{
		White:    posStats.White,
		Draws:    posStats.Draws,
		Black:    posStats.Black,
		TopGames: []struct{}{},
		Database: "local",
		Stats: Stats{
			TotalGames:      uint64(total),
			WhiteWinPercent: percent(posStats.White, total),
			DrawPercent:     percent(posStats.Draws, total),
			BlackWinPercent: percent(posStats.Black, total),
		},
	}

	for _, mv := range moves {
		m, err := board.ParseMove(mv.UCI, pos)
		if err != nil {
			continue
		}
		san := m.ToSAN(pos)

		moveTotal := mv.Total()
		res.Moves = append(res.Moves, MoveResult{
			UCI:           mv.UCI,
			SAN:           san,
			White:         mv.White,
			Draws:         mv.Draws,
			Black:         mv.Black,
			AverageRating: mv.AverageRating(),
			TotalGames:    uint64(moveTotal),
			PlayRate:      percent(moveTotal, total),
			WhiteWinPct:   percent(mv.White, moveTotal),
			DrawPct:       percent(mv.Draws, moveTotal),
			BlackWinPct:   percent(mv.Black, moveTotal),
		})
	}

	if book != nil {
		if epd, err := board.EPD(fen); err == nil {
			if entry, ok := book.Lookup(epd); ok {
				res.Opening = &Opening{ECO: entry.ECO, Name: entry.Name}
			}
		}
	}

	return res, nil
}

func percent(part, total uint32) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(part) / float64(total)
}
