package engine

import (
	"errors"
	"math/bits"
	"strings"

	dragon "github.com/dylhunn/dragontoothmg"
)

// Position wraps the backend board with the queries the analyzer needs that
// the library does not export directly, plus a zobrist history stack so that
// repetitions along a forced line can be detected.
type Position struct {
	board   dragon.Board
	history []uint64
}

// NewPosition parses a FEN, tolerating omitted clock fields. The backend
// panics on malformed input; the panic is turned back into an error here.
func NewPosition(fen string) (pos *Position, err error) {
	defer func() {
		if r := recover(); r != nil {
			pos = nil
			err = errors.New("invalid FEN")
		}
	}()

	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return nil, errors.New("invalid FEN")
	}
	if len(fields) == 4 {
		fields = append(fields, "0")
	}
	if len(fields) == 5 {
		fields = append(fields, "1")
	}

	board := dragon.ParseFen(strings.Join(fields, " "))
	pos = &Position{board: board}
	pos.history = append(pos.history, pos.board.Hash())
	return pos, nil
}

func (pos *Position) Board() *dragon.Board {
	return &pos.board
}

func (pos *Position) SideToMove() Color {
	if pos.board.Wtomove {
		return White
	}
	return Black
}

func (pos *Position) Key() uint64 {
	return pos.board.Hash()
}

func (pos *Position) Occupied() uint64 {
	return pos.board.White.All | pos.board.Black.All
}

// Pieces returns the occupancy of one color.
func (pos *Position) Pieces(c Color) uint64 {
	if c == White {
		return pos.board.White.All
	}
	return pos.board.Black.All
}

func (pos *Position) bitboards(c Color) *dragon.Bitboards {
	if c == White {
		return &pos.board.White
	}
	return &pos.board.Black
}

// PiecesOf returns the squares holding pieces of the given color and kind.
func (pos *Position) PiecesOf(c Color, p dragon.Piece) uint64 {
	bb := pos.bitboards(c)
	switch p {
	case dragon.Pawn:
		return bb.Pawns
	case dragon.Knight:
		return bb.Knights
	case dragon.Bishop:
		return bb.Bishops
	case dragon.Rook:
		return bb.Rooks
	case dragon.Queen:
		return bb.Queens
	case dragon.King:
		return bb.Kings
	}
	return 0
}

// PieceOn reports the piece kind and color on a square.
func (pos *Position) PieceOn(s Square) (dragon.Piece, Color, bool) {
	bb := squareBB(s)
	c := White
	side := &pos.board.White
	if pos.board.Black.All&bb != 0 {
		c = Black
		side = &pos.board.Black
	} else if pos.board.White.All&bb == 0 {
		return dragon.Nothing, White, false
	}

	switch {
	case side.Pawns&bb != 0:
		return dragon.Pawn, c, true
	case side.Knights&bb != 0:
		return dragon.Knight, c, true
	case side.Bishops&bb != 0:
		return dragon.Bishop, c, true
	case side.Rooks&bb != 0:
		return dragon.Rook, c, true
	case side.Queens&bb != 0:
		return dragon.Queen, c, true
	case side.Kings&bb != 0:
		return dragon.King, c, true
	}
	return dragon.Nothing, White, false
}

func (pos *Position) KingSquare(c Color) Square {
	return Square(bits.TrailingZeros64(pos.bitboards(c).Kings))
}

// AttackersTo returns the pieces of color by that attack s on the current
// occupancy.
func (pos *Position) AttackersTo(s Square, by Color) uint64 {
	them := pos.bitboards(by)
	occ := pos.Occupied()

	attackers := PawnAttacks[by.Other()][s] & them.Pawns
	attackers |= KnightMoves[s] & them.Knights
	attackers |= KingMoves[s] & them.Kings
	attackers |= dragon.CalculateBishopMoveBitboard(uint8(s), occ) & (them.Bishops | them.Queens)
	attackers |= dragon.CalculateRookMoveBitboard(uint8(s), occ) & (them.Rooks | them.Queens)
	return attackers
}

// Checkers returns the pieces giving check to the side to move.
func (pos *Position) Checkers() uint64 {
	stm := pos.SideToMove()
	return pos.AttackersTo(pos.KingSquare(stm), stm.Other())
}

// CanCaptureKing reports whether the side to move attacks the opposing king,
// i.e. the position could not have been reached legally.
func (pos *Position) CanCaptureKing() bool {
	stm := pos.SideToMove()
	return pos.AttackersTo(pos.KingSquare(stm.Other()), stm) != 0
}

func (pos *Position) LegalMoves() []dragon.Move {
	return pos.board.GenerateLegalMoves()
}

func (pos *Position) IsCapture(m dragon.Move) bool {
	return dragon.IsCapture(m, &pos.board)
}

// IsEnPassant reports whether m is an en-passant capture: a pawn leaving its
// file onto an empty square.
func (pos *Position) IsEnPassant(m dragon.Move) bool {
	from := Square(m.From())
	to := Square(m.To())
	p, _, ok := pos.PieceOn(from)
	if !ok || p != dragon.Pawn {
		return false
	}
	return fileOf(from) != fileOf(to) && pos.Occupied()&squareBB(to) == 0
}

// MovedPiece returns the kind of the piece m moves.
func (pos *Position) MovedPiece(m dragon.Move) dragon.Piece {
	p, _, _ := pos.PieceOn(Square(m.From()))
	return p
}

// DoMove applies a legal move and returns the matching undo closure. The
// zobrist history is pushed alongside; captures and pawn moves start a fresh
// stack since no earlier position can repeat after them.
func (pos *Position) DoMove(m dragon.Move) func() {
	prevHistory := pos.history
	irreversible := pos.IsCapture(m) || pos.MovedPiece(m) == dragon.Pawn

	unapply := pos.board.Apply(m)

	if irreversible {
		pos.history = []uint64{pos.board.Hash()}
	} else {
		pos.history = append(pos.history, pos.board.Hash())
	}

	return func() {
		unapply()
		pos.history = prevHistory
	}
}

// IsRepetition reports whether the current position already occurred since
// the last irreversible move.
func (pos *Position) IsRepetition() bool {
	if len(pos.history) < 2 {
		return false
	}
	current := pos.history[len(pos.history)-1]
	for _, key := range pos.history[:len(pos.history)-1] {
		if key == current {
			return true
		}
	}
	return false
}

// Clone returns an independent copy; searches that advance a position without
// undoing (trivial progress probes) operate on clones.
func (pos *Position) Clone() *Position {
	return &Position{
		board:   pos.board,
		history: append([]uint64(nil), pos.history...),
	}
}
