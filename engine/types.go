package engine

import (
	"math/bits"

	dragon "github.com/dylhunn/dragontoothmg"
)

// Square indices follow the backend's little-endian rank-file mapping:
// a1 = 0, h1 = 7, a8 = 56, h8 = 63.
type Square int

const (
	squareA1 Square = 0
	squareH6 Square = 47
	squareG8 Square = 62
	squareH8 Square = 63
)

type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) Other() Color {
	return c ^ 1
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

const (
	bitboardFileA uint64 = 0x0101010101010101
	bitboardFileH uint64 = 0x8080808080808080

	// Squares of the same color as a1.
	DarkSquares uint64 = 0xAA55AA55AA55AA55
)

// Attack masks for the leapers, filled in by init.go.
var KingMoves [64]uint64
var KnightMoves [64]uint64
var PawnAttacks [2][64]uint64

func squareBB(s Square) uint64 {
	return uint64(1) << uint(s)
}

func fileOf(s Square) int {
	return int(s) & 7
}

func rankOf(s Square) int {
	return int(s) >> 3
}

func fileDistance(a, b Square) int {
	return Abs(fileOf(a) - fileOf(b))
}

func rankDistance(a, b Square) int {
	return Abs(rankOf(a) - rankOf(b))
}

// Chebyshev distance; the number of king moves between two squares on an
// empty board.
func squareDistance(a, b Square) int {
	return Max(fileDistance(a, b), rankDistance(a, b))
}

func flipFile(s Square) Square {
	return s ^ 7
}

func flipRank(s Square) Square {
	return s ^ 56
}

func isCorner(s Square) bool {
	return s == 0 || s == 7 || s == 56 || s == 63
}

func popcount(bb uint64) int {
	return bits.OnesCount64(bb)
}

// popLSB clears and returns the index of the lowest set bit.
func popLSB(bb *uint64) int {
	lsb := bits.TrailingZeros64(*bb)
	*bb &= *bb - 1
	return lsb
}

func Min(x, y int) int {
	if x < y {
		return x
	}
	return y
}

func Max(x, y int) int {
	if x > y {
		return x
	}
	return y
}

func Abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// pieceKinds in the backend's order; dragon.Nothing is not a kind.
var pieceKinds = [6]dragon.Piece{
	dragon.Pawn, dragon.Knight, dragon.Bishop,
	dragon.Rook, dragon.Queen, dragon.King,
}
