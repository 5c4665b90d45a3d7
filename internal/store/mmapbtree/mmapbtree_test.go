package mmapbtree

import (
	"testing"

	"github.com/chesscoach/explorer/internal/explorerrors"
	"github.com/chesscoach/explorer/internal/store"
)

func buildStore(t *testing.T, records []struct {
	key []byte
	val []byte
}) *Store {
	t.Helper()
	dir := t.TempDir()

	w, err := Create(dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, r := range records {
		if err := w.Append(r.key, r.val); err != nil {
			t.Fatalf("Append(%x): %v", r.key, err)
		}
	}
	if _, err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteAndReadPositionsAndMoves(t *testing.T) {
	hash1 := uint64(100)
	hash2 := uint64(200)

	p1 := store.PositionStats{White: 3, Draws: 1, Black: 2}
	p2 := store.PositionStats{White: 10, Draws: 0, Black: 0}
	m1a := store.MoveStats{White: 2, Draws: 1, Black: 0, RatingSum: 3000, Games: 3}
	m1b := store.MoveStats{White: 1, Draws: 0, Black: 2, RatingSum: 3000, Games: 3}

	records := []struct {
		key []byte
		val []byte
	}{
		{store.PositionKey(hash1), store.EncodePositionStats(p1)},
		{store.MoveKey(hash1, "e2e4"), store.EncodeMoveStats(m1a)},
		{store.MoveKey(hash1, "g1f3"), store.EncodeMoveStats(m1b)},
		{store.PositionKey(hash2), store.EncodePositionStats(p2)},
	}

	s := buildStore(t, records)

	got, err := s.GetPosition(hash1)
	if err != nil {
		t.Fatalf("GetPosition(hash1): %v", err)
	}
	if got != p1 {
		t.Errorf("GetPosition(hash1) = %+v, want %+v", got, p1)
	}

	got2, err := s.GetPosition(hash2)
	if err != nil {
		t.Fatalf("GetPosition(hash2): %v", err)
	}
	if got2 != p2 {
		t.Errorf("GetPosition(hash2) = %+v, want %+v", got2, p2)
	}

	moves, err := s.GetMoves(hash1)
	if err != nil {
		t.Fatalf("GetMoves(hash1): %v", err)
	}
	if len(moves) != 2 {
		t.Fatalf("GetMoves(hash1) returned %d moves, want 2", len(moves))
	}
	// Both moves have Total()==3; sort is stable, so insertion order (e2e4
	// before g1f3) must be preserved.
	if moves[0].UCI != "e2e4" || moves[1].UCI != "g1f3" {
		t.Errorf("GetMoves(hash1) order = %v, want [e2e4 g1f3]", moves)
	}
}

func TestGetPositionNotFound(t *testing.T) {
	s := buildStore(t, []struct {
		key []byte
		val []byte
	}{
		{store.PositionKey(1), store.EncodePositionStats(store.PositionStats{White: 1})},
	})

	if _, err := s.GetPosition(999); err != explorerrors.ErrNotFound {
		t.Errorf("GetPosition(999) error = %v, want ErrNotFound", err)
	}
}

func TestHasPosition(t *testing.T) {
	s := buildStore(t, []struct {
		key []byte
		val []byte
	}{
		{store.PositionKey(1), store.EncodePositionStats(store.PositionStats{})},
	})

	ok, err := s.HasPosition(1)
	if err != nil || !ok {
		t.Errorf("HasPosition(1) = %v, %v, want true, nil", ok, err)
	}
	ok, err = s.HasPosition(2)
	if err != nil || ok {
		t.Errorf("HasPosition(2) = %v, %v, want false, nil", ok, err)
	}
}

func TestStatsReflectsCounts(t *testing.T) {
	s := buildStore(t, []struct {
		key []byte
		val []byte
	}{
		{store.PositionKey(1), store.EncodePositionStats(store.PositionStats{})},
		{store.MoveKey(1, "e2e4"), store.EncodeMoveStats(store.MoveStats{})},
		{store.PositionKey(2), store.EncodePositionStats(store.PositionStats{})},
	})

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.PositionCount != 2 || stats.MoveCount != 1 {
		t.Errorf("Stats = %+v, want PositionCount=2 MoveCount=1", stats)
	}
	if stats.SizeBytes <= 0 {
		t.Errorf("Stats.SizeBytes = %d, want > 0", stats.SizeBytes)
	}
}

func TestAppendRejectsOutOfOrderKeys(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(dir)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Abort()

	if err := w.Append(store.PositionKey(5), store.EncodePositionStats(store.PositionStats{})); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Append(store.PositionKey(3), store.EncodePositionStats(store.PositionStats{})); err == nil {
		t.Error("Append with a smaller key than the last one should fail")
	}
}

func TestVerifyDetectsWellFormedStore(t *testing.T) {
	s := buildStore(t, []struct {
		key []byte
		val []byte
	}{
		{store.PositionKey(1), store.EncodePositionStats(store.PositionStats{White: 1})},
		{store.MoveKey(1, "e2e4"), store.EncodeMoveStats(store.MoveStats{White: 1, Games: 1})},
		{store.PositionKey(2), store.EncodePositionStats(store.PositionStats{})},
	})

	if err := s.Verify(); err != nil {
		t.Errorf("Verify() = %v, want nil", err)
	}
}

func TestManyRecordsCrossSparseIndexBoundaries(t *testing.T) {
	var records []struct {
		key []byte
		val []byte
	}
	for h := uint64(0); h < 200; h++ {
		records = append(records, struct {
			key []byte
			val []byte
		}{store.PositionKey(h), store.EncodePositionStats(store.PositionStats{White: uint32(h)})})
	}

	s := buildStore(t, records)

	for _, h := range []uint64{0, 1, 17, 100, 150, 199} {
		got, err := s.GetPosition(h)
		if err != nil {
			t.Fatalf("GetPosition(%d): %v", h, err)
		}
		if got.White != uint32(h) {
			t.Errorf("GetPosition(%d).White = %d, want %d", h, got.White, h)
		}
	}
}
