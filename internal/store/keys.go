package store

import (
	"encoding/binary"
	"fmt"
)

// Key layout: the 8-byte big-endian hash comes first, then a one-byte type
// tag, then (for moves) the UCI suffix. Comparing the hash before the tag is
// what makes a position key sort immediately before all of its own move
// keys, which in turn sort before the next position's key, hold under
// plain byte-lexicographic comparison. A human-readable "p:"/"m:" prefix
// ahead of the hash would not give that ordering, since 'm' < 'p' would
// sort every move key ahead of every position key regardless of hash. See
// DESIGN.md for the full reasoning.
const (
	tagPosition byte = 0
	tagMove     byte = 1
)

// PositionKey returns the byte-ordered store key for a position's aggregate
// stats: 8-byte big-endian hash followed by the position tag.
func PositionKey(hash uint64) []byte {
	key := make([]byte, 9)
	binary.BigEndian.PutUint64(key, hash)
	key[8] = tagPosition
	return key
}

// MoveKey returns the byte-ordered store key for a single move's stats:
// 8-byte big-endian hash, the move tag, then the UCI move string.
func MoveKey(hash uint64, uci string) []byte {
	key := make([]byte, 9+len(uci))
	binary.BigEndian.PutUint64(key, hash)
	key[8] = tagMove
	copy(key[9:], uci)
	return key
}

// MovePrefix returns the key prefix shared by every move key for a hash,
// suitable for a range scan over every move played from that position.
func MovePrefix(hash uint64) []byte {
	prefix := make([]byte, 9)
	binary.BigEndian.PutUint64(prefix, hash)
	prefix[8] = tagMove
	return prefix
}

// IsPositionKey reports whether key is a position key, and if so its hash.
func IsPositionKey(key []byte) (uint64, bool) {
	if len(key) != 9 || key[8] != tagPosition {
		return 0, false
	}
	return binary.BigEndian.Uint64(key), true
}

// IsMoveKey reports whether key is a move key, and if so its hash and UCI
// move string.
func IsMoveKey(key []byte) (hash uint64, uci string, ok bool) {
	if len(key) < 9 || key[8] != tagMove {
		return 0, "", false
	}
	return binary.BigEndian.Uint64(key), string(key[9:]), true
}

// EncodePositionStats serializes a PositionStats to its fixed 12-byte
// little-endian wire format.
func EncodePositionStats(s PositionStats) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], s.White)
	binary.LittleEndian.PutUint32(buf[4:8], s.Draws)
	binary.LittleEndian.PutUint32(buf[8:12], s.Black)
	return buf
}

// DecodePositionStats parses the fixed 12-byte little-endian wire format
// produced by EncodePositionStats.
func DecodePositionStats(buf []byte) (PositionStats, error) {
	if len(buf) != 12 {
		return PositionStats{}, fmt.Errorf("store: position value must be 12 bytes, got %d", len(buf))
	}
	return PositionStats{
		White: binary.LittleEndian.Uint32(buf[0:4]),
		Draws: binary.LittleEndian.Uint32(buf[4:8]),
		Black: binary.LittleEndian.Uint32(buf[8:12]),
	}, nil
}

// EncodeMoveStats serializes a MoveStats to its fixed 24-byte little-endian
// wire format. The UCI move itself is carried in the key, not this value.
func EncodeMoveStats(s MoveStats) []byte {
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint32(buf[0:4], s.White)
	binary.LittleEndian.PutUint32(buf[4:8], s.Draws)
	binary.LittleEndian.PutUint32(buf[8:12], s.Black)
	binary.LittleEndian.PutUint64(buf[12:20], s.RatingSum)
	binary.LittleEndian.PutUint32(buf[20:24], s.Games)
	return buf
}

// DecodeMoveStats parses the fixed 24-byte little-endian wire format
// produced by EncodeMoveStats.
func DecodeMoveStats(buf []byte) (MoveStats, error) {
	if len(buf) != 24 {
		return MoveStats{}, fmt.Errorf("store: move value must be 24 bytes, got %d", len(buf))
	}
	return MoveStats{
		White:     binary.LittleEndian.Uint32(buf[0:4]),
		Draws:     binary.LittleEndian.Uint32(buf[4:8]),
		Black:     binary.LittleEndian.Uint32(buf[8:12]),
		RatingSum: binary.LittleEndian.Uint64(buf[12:20]),
		Games:     binary.LittleEndian.Uint32(buf[20:24]),
	}, nil
}
