package board

// Zobrist hash keys for position hashing.
// Uses a PRNG with a fixed seed so hashes are reproducible across runs and
// across independent implementations that follow the same table layout:
// 768 piece keys (12 piece kinds x 64 squares), 1 side-to-move key, 4
// independent castling-right keys, and 8 en-passant file keys.
var (
	zobristPiece      [2][7][64]uint64 // [Color][PieceType][Square] - 7 to handle NoPieceType safely
	zobristEnPassant  [8]uint64        // One per file
	zobristCastleBit  [4]uint64        // One per right: K, Q, k, q
	zobristCastling   [16]uint64       // Composite of zobristCastleBit, indexed by CastlingRights bitmask
	zobristSideToMove uint64           // XOR when black to move
)

func init() {
	initZobrist()
}

// prng is a small xorshift64* generator used to derive the Zobrist table
// deterministically from a fixed seed.
type prng struct {
	state uint64
}

func newPRNG(seed uint64) *prng {
	return &prng{state: seed}
}

// xorshift64* algorithm
func (p *prng) next() uint64 {
	p.state ^= p.state >> 12
	p.state ^= p.state << 25
	p.state ^= p.state >> 27
	return p.state * 0x2545F4914F6CDD1D
}

func initZobrist() {
	rng := newPRNG(0x98F107A2BEEF1234) // Fixed seed

	// Piece keys
	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			for sq := A1; sq <= H8; sq++ {
				zobristPiece[c][pt][sq] = rng.next()
			}
		}
	}

	// En passant keys (one per file)
	for file := 0; file < 8; file++ {
		zobristEnPassant[file] = rng.next()
	}

	// Castling keys: one independent key per right (K, Q, k, q), XOR-ed
	// together per right held. The 16-entry table below is a precomputed
	// lookup of every bitmask's composite so hot paths stay a single array
	// index, but its values are entirely derived from zobristCastleBit.
	for i := 0; i < 4; i++ {
		zobristCastleBit[i] = rng.next()
	}
	for mask := 0; mask < 16; mask++ {
		var composite uint64
		for bit := 0; bit < 4; bit++ {
			if mask&(1<<bit) != 0 {
				composite ^= zobristCastleBit[bit]
			}
		}
		zobristCastling[mask] = composite
	}

	// Side to move key
	zobristSideToMove = rng.next()
}

