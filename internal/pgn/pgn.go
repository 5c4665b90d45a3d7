// Package pgn streams PGN game records out of a file, stripping annotation
// noise down to a bare move list plus the handful of header fields
// downstream consumers need.
package pgn

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ParsedGame is one PGN record reduced to what the Move Replayer needs.
type ParsedGame struct {
	MovesSAN      []string
	Result        Result
	AverageRating uint32
	HasRating     bool
	Event         string
	Year          int
	HasYear       bool
	TimeControl   string
}

// Result is the outcome recorded in a game's Result header.
type Result int

const (
	ResultUnknown Result = iota
	ResultWhiteWin
	ResultBlackWin
	ResultDraw
)

func parseResult(tag string) Result {
	switch strings.TrimSpace(tag) {
	case "1-0":
		return ResultWhiteWin
	case "0-1":
		return ResultBlackWin
	case "1/2-1/2":
		return ResultDraw
	default:
		return ResultUnknown
	}
}

// Filter narrows which parsed games a Streamer emits. A zero Filter accepts
// everything.
type Filter struct {
	MinRating           uint32
	MinYear             int
	AllowedTimeControls []string // empty means any time control is allowed
}

func (f Filter) accepts(g ParsedGame) bool {
	if f.MinRating > 0 && (!g.HasRating || g.AverageRating < f.MinRating) {
		return false
	}
	if f.MinYear > 0 && (!g.HasYear || g.Year < f.MinYear) {
		return false
	}
	if len(f.AllowedTimeControls) > 0 {
		ok := false
		for _, tc := range f.AllowedTimeControls {
			if tc == g.TimeControl {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// ProgressFunc is invoked every ProgressInterval games with running counts.
type ProgressFunc func(parsed, skipped uint64)

// DefaultProgressInterval matches the interval a long PGN ingest run reports
// progress at when the caller does not override it.
const DefaultProgressInterval = 10000

// Streamer reads games out of a PGN file one at a time.
type Streamer struct {
	Filter           Filter
	Progress         ProgressFunc
	ProgressInterval uint64

	parsed  uint64
	skipped uint64
}

var tagLineRE = regexp.MustCompile(`^\[(\w+)\s+"(.*)"\]\s*$`)

// StreamFile opens path and invokes emit for every parsed game that passes
// the streamer's filter. A game filtered out still counts toward skipped but
// is not passed to emit. emit returning an error stops streaming early.
func (s *Streamer) StreamFile(path string, emit func(ParsedGame) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("pgn: open %s: %w", path, err)
	}
	defer f.Close()
	return s.Stream(f, emit)
}

// Stream reads games out of r, one record at a time, until EOF.
func (s *Streamer) Stream(r io.Reader, emit func(ParsedGame) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		headers  = map[string]string{}
		moveBuf  strings.Builder
		inRecord bool
	)

	flush := func() error {
		if !inRecord {
			return nil
		}
		game, ok := finishGame(headers, moveBuf.String())
		inRecord = false
		headers = map[string]string{}
		moveBuf.Reset()
		if !ok {
			return nil
		}
		return s.deliver(game, emit)
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			// The blank line between a record's header block and its moves
			// block does not end the record; only one after move text does.
			if moveBuf.Len() == 0 {
				continue
			}
			if err := flush(); err != nil {
				return err
			}
			continue
		}

		if m := tagLineRE.FindStringSubmatch(trimmed); m != nil {
			if !inRecord && moveBuf.Len() == 0 {
				inRecord = true
			}
			headers[m[1]] = m[2]
			continue
		}

		inRecord = true
		moveBuf.WriteString(trimmed)
		moveBuf.WriteByte(' ')
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("pgn: scan: %w", err)
	}

	// The final record in a file need not be followed by a blank line.
	return flush()
}

func (s *Streamer) deliver(g ParsedGame, emit func(ParsedGame) error) error {
	s.parsed++
	if !s.Filter.accepts(g) {
		s.skipped++
	} else if err := emit(g); err != nil {
		return err
	}

	interval := s.ProgressInterval
	if interval == 0 {
		interval = DefaultProgressInterval
	}
	if s.Progress != nil && s.parsed%interval == 0 {
		s.Progress(s.parsed, s.skipped)
	}
	return nil
}

// Counts returns the running (parsed, skipped) totals.
func (s *Streamer) Counts() (parsed, skipped uint64) {
	return s.parsed, s.skipped
}

func finishGame(headers map[string]string, moveText string) (ParsedGame, bool) {
	result := parseResult(headers["Result"])
	if result == ResultUnknown {
		return ParsedGame{}, false
	}

	moves := tokenizeMoves(moveText)
	if len(moves) == 0 {
		return ParsedGame{}, false
	}

	g := ParsedGame{
		MovesSAN:    moves,
		Result:      result,
		Event:       headers["Event"],
		TimeControl: headers["TimeControl"],
	}

	if whiteElo, okW := parseInt(headers["WhiteElo"]); okW {
		if blackElo, okB := parseInt(headers["BlackElo"]); okB {
			g.AverageRating = uint32((whiteElo + blackElo + 1) / 2)
			g.HasRating = true
		}
	}

	if date, ok := headers["Date"]; ok {
		if year, ok := parseYear(date); ok {
			g.Year = year
			g.HasYear = true
		}
	}

	return g, true
}

func parseInt(s string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseYear extracts the year out of a PGN Date header, which uses the form
// "YYYY.MM.DD" with "?" for unknown fields.
func parseYear(date string) (int, bool) {
	fields := strings.SplitN(date, ".", 2)
	if len(fields) == 0 {
		return 0, false
	}
	return parseInt(fields[0])
}

var (
	moveNumberRE = regexp.MustCompile(`^\d+\.+$`)
	nagRE        = regexp.MustCompile(`^\$\d+$`)
	resultTokens = map[string]bool{"1-0": true, "0-1": true, "1/2-1/2": true, "*": true}
)

// tokenizeMoves strips comments, variations, NAGs, move numbers, and the
// trailing result token out of a PGN move-text block, returning the
// remaining SAN tokens in order.
func tokenizeMoves(text string) []string {
	stripped := stripBraceComments(text)
	stripped = stripVariations(stripped)

	var moves []string
	for _, tok := range strings.Fields(stripped) {
		switch {
		case resultTokens[tok]:
			continue
		case moveNumberRE.MatchString(tok):
			continue
		case nagRE.MatchString(tok):
			continue
		default:
			tok = strings.TrimRight(tok, "!?")
			if tok == "" {
				continue
			}
			moves = append(moves, tok)
		}
	}
	return moves
}

func stripBraceComments(text string) string {
	var b strings.Builder
	depth := 0
	for _, r := range text {
		switch {
		case r == '{':
			depth++
		case r == '}':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripVariations(text string) string {
	var b strings.Builder
	depth := 0
	for _, r := range text {
		switch {
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
