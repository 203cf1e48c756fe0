package engine

import (
	dragon "github.com/dylhunn/dragontoothmg"
)

// offBoard is high enough to always land outside the board.
const offBoard = 128

var pawnIncs = [8]int{-8, -7, -9, offBoard, offBoard, offBoard, offBoard, offBoard}
var knightIncs = [8]int{17, 15, 10, 6, -6, -10, -15, -17}
var bishopIncs = [8]int{9, 7, -7, -9, offBoard, offBoard, offBoard, offBoard}
var rookIncs = [8]int{8, 1, -1, -8, offBoard, offBoard, offBoard, offBoard}
var queenIncs = [8]int{9, 8, 7, 1, -1, -7, -8, -9}
var kingIncs = [8]int{9, 8, 7, 1, -1, -7, -8, -9}

// Indexed by piece kind - 1 (Pawn..King).
var increments = [6]*[8]int{
	&pawnIncs, &knightIncs, &bishopIncs, &rookIncs, &queenIncs, &kingIncs,
}

func overflows(source, target Square) bool {
	return target < 0 || target > 63 ||
		Abs(int(source)%8-int(target)%8) > 2
}

// unmove fills presquares with the squares from which a piece of kind p and
// color c could have stepped onto s in one move, padding with -1. For pawns
// the first entry is the push source; the capture sources follow. Sliders
// only list the adjacent step, the rest of a slide is recovered transitively.
func unmove(presquares *[8]Square, p dragon.Piece, c Color, s Square) {
	i := 0
	direction := 1
	if c == Black {
		direction = -1
	}

	for j := 0; j < 8; j++ {
		prev := s + Square(direction*increments[p-1][j])
		if overflows(s, prev) {
			continue
		}
		presquares[i] = prev
		i++
	}
	for i < 8 {
		presquares[i] = -1
		i++
	}
}

// neighbours returns the squares a king's step away from s.
func neighbours(s Square) uint64 {
	return KingMoves[s]
}

// A pawn is said to be "lonely" if there are no opponent pawns in its file.
func hasLonelyPawns(pos *Position) bool {
	whitePawns := pos.board.White.Pawns
	blackPawns := pos.board.Black.Pawns

	whitePawnOcc := 0
	blackPawnOcc := 0

	for s := Square(0); s < 64; s++ {
		if whitePawns&squareBB(s) != 0 && s < 48 {
			whitePawnOcc |= 1 << uint(fileOf(s))
		}
		if blackPawns&squareBB(s) != 0 && s > 15 {
			blackPawnOcc |= 1 << uint(fileOf(s))
		}
	}

	return whitePawnOcc != blackPawnOcc
}

// nbBlockedPawns counts pawns stopped by an opposing pawn on the square in
// front of them; a locked pair contributes two.
func nbBlockedPawns(pos *Position) int {
	whitePawns := pos.board.White.Pawns
	blackPawns := pos.board.Black.Pawns

	return popcount((whitePawns<<8)&blackPawns) +
		popcount((blackPawns>>8)&whitePawns)
}

// semiBlockedTarget detects positions whose pawns are all stopped but where
// walking a king onto an undefended blocking pawn would open a file. It
// returns that pawn's square. Only a search heuristic; never affects
// soundness.
func semiBlockedTarget(pos *Position) (Square, bool) {
	whitePawns := pos.board.White.Pawns
	blackPawns := pos.board.Black.Pawns
	occupied := pos.Occupied()

	// Every pawn must be unable to push.
	if (whitePawns<<8)&^occupied != 0 {
		return 0, false
	}
	if (blackPawns>>8)&^occupied != 0 {
		return 0, false
	}

	// A blocking pawn that no pawn defends is capturable by a king walk.
	for s := Square(0); s < 64; s++ {
		bb := squareBB(s)
		if blackPawns&bb != 0 && whitePawns&(bb>>8) != 0 {
			if PawnAttacks[White][s]&blackPawns == 0 {
				return s, true
			}
		}
		if whitePawns&bb != 0 && blackPawns&(bb<<8) != 0 {
			if PawnAttacks[Black][s]&whitePawns == 0 {
				return s, true
			}
		}
	}
	return 0, false
}

// trivialProgress plays forced moves (positions with a single legal reply)
// recording them on the search sequence. It reports whether the forced line
// ran into a repeated position, which makes the game drawn by force. The
// descent is bounded to avoid cycling forever on reversible forced lines.
func trivialProgress(pos *Position, search *Search, repetitions int) bool {
	for i := 0; i < repetitions; i++ {
		moves := pos.LegalMoves()
		if len(moves) != 1 {
			return false
		}
		search.PushForced(moves[0])
		pos.DoMove(moves[0])
		if pos.IsRepetition() {
			return true
		}
	}
	return false
}

// trivialProgressQuiet is trivialProgress without sequence recording, for
// probing clones.
func trivialProgressQuiet(pos *Position, repetitions int) bool {
	for i := 0; i < repetitions; i++ {
		moves := pos.LegalMoves()
		if len(moves) != 1 {
			return false
		}
		pos.DoMove(moves[0])
		if pos.IsRepetition() {
			return true
		}
	}
	return false
}

// The next function computes the knight distance between two squares.
// Note that this can be calculated from just the rank distance and
// the file distance between the squares, following the tables:
//
//	    0 2 4 6            1 3 5 7            1 3 5 7
//	   ---------          ---------          ---------
//	0 | 0 2 2 4        1 | 2 2 4 4        0 | 3 3 3 5
//	2 |   4 2 4        3 |   2 4 4        2 | 1 3 3 5
//	4 |     4 4        5 |     4 4        4 | 3 3 3 5
//	6 |       4        7 |       6        6 | 3 3 5 5
//
// Exceptionally, the distance between a corner and its diagonal neighbour
// is 4 and cannot be read off the tables.
func knightDistance(x, y Square) int {
	first := Min(fileDistance(x, y), rankDistance(x, y))
	second := Max(fileDistance(x, y), rankDistance(x, y))

	// Handle the exceptional cases

	if first == 1 && second == 1 && (isCorner(x) || isCorner(y)) {
		return 4
	}

	// First and second tables
	if first%2 == second%2 {
		if first == 0 && second == 0 {
			return 0
		}
		if first == 0 && second == 2 {
			return 2
		}
		if first == 0 && second == 4 {
			return 2
		}
		if first == 2 && second == 4 {
			return 2
		}

		if first == 1 && second == 1 {
			return 2
		}
		if first == 1 && second == 3 {
			return 2
		}
		if first == 3 && second == 3 {
			return 2
		}
		if first == 7 && second == 7 {
			return 6
		}

		return 4
	}

	// Third table
	if second == 7 {
		return 5
	}
	if first == 1 && second == 2 {
		return 1
	}
	if first == 5 && second == 6 {
		return 5
	}

	return 3
}

// In practice, instead of calling the closed form all the time, we store the
// distances between any two squares in an array.
var knightDistanceTable [4096]int8

func knightDistanceIndex(x, y Square) int {
	return int(x) | int(y)<<6
}

func initKnightDistance() {
	for x := Square(0); x < 64; x++ {
		for y := Square(0); y < 64; y++ {
			knightDistanceTable[knightDistanceIndex(x, y)] = int8(knightDistance(x, y))
		}
	}
}

// KnightDistanceGet returns the minimum number of knight moves between two
// squares.
func KnightDistanceGet(x, y Square) int {
	return int(knightDistanceTable[knightDistanceIndex(x, y)])
}
