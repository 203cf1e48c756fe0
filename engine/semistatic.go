package engine

import (
	dragon "github.com/dylhunn/dragontoothmg"
)

// This file determines which pieces can move in a given position and the
// squares they can go to. The analysis is static in the sense that it only
// looks at the current placement of the pieces, yet it may conclude that a
// piece can potentially reach a square even though every path is currently
// blocked. We call it "semi-static". It is required to be SOUND on negative
// statements: if it concludes that a piece can NEVER reach a square, that is
// really the case. It is not complete; positive statements are only "maybe".
//
// The analysis solves a system of monotone Boolean implications:
//
//	Move(p,c,s,t) : the piece of kind p and color c now on s can land on t
//	                after some number of moves
//	Clear(c,s)    : s can be cleared of (or does not hold) a c-colored piece
//	Reach(c,s)    : some non-king c-colored piece can reach s
//	Capture(c,s)  : some c-colored piece can arrive on s with a capture
//
// A Move variable depends on the Move variables of its pre-image squares
// (a piece reaching t must first reach a square from which t is one step
// away) and on Clear/Reach/Capture side conditions. Saturation highlights
// variables until a full pass changes nothing; being monotone, the least
// fixed point is reached.

const (
	// 2 colors * 6 piece kinds * 64 source * 64 target squares
	nMoveVars    = 49152
	nPromVars    = 128
	nClearVars   = 128
	nReachVars   = 128
	nCaptureVars = 128

	nEqs  = nMoveVars + nPromVars
	nVars = nMoveVars + nPromVars + nClearVars + nReachVars + nCaptureVars
)

// Each Movement variable has at most 8 pre-image disjuncts, -1 terminated.
// Built once at init; immutable afterwards.
var equations [nEqs][8]int32

func moveIndex(p dragon.Piece, c Color, source, target Square) int {
	return (int(p)-1)<<13 + int(c)<<12 | int(source)<<6 | int(target)
}

func colorSquareIndex(c Color, s Square) int {
	return int(c)<<6 | int(s)
}

func clearIndex(c Color, s Square) int {
	return nMoveVars + nPromVars + colorSquareIndex(c, s)
}

func reachIndex(c Color, s Square) int {
	return nMoveVars + nPromVars + nClearVars + colorSquareIndex(c, s)
}

func captureIndex(c Color, s Square) int {
	return nMoveVars + nPromVars + nClearVars + nReachVars + colorSquareIndex(c, s)
}

// System holds the truth values of one saturated position. The equations are
// shared and immutable; a System instance must not be shared between
// concurrent analyses.
type System struct {
	variables [nVars]bool
}

// Saturate rewrites the variable array for pos and solves the system to its
// least fixed point.
func (sys *System) Saturate(pos *Position) {

	// Initialize the variables

	for j := range sys.variables {
		sys.variables[j] = false
	}

	var occupied [64]Square
	n := 0

	for s := Square(0); s < 64; s++ {
		p, c, ok := pos.PieceOn(s)
		if !ok {
			sys.variables[clearIndex(White, s)] = true
			sys.variables[clearIndex(Black, s)] = true
			continue
		}

		sys.variables[clearIndex(c.Other(), s)] = true
		sys.variables[moveIndex(p, c, s, s)] = true
		occupied[n] = s
		n++
	}

	// Saturate the system

	change := true
	for change {
		change = false

		for k := 0; k < n; k++ {
			source := occupied[k]
			p, c, _ := pos.PieceOn(source)

			// Update Clear variables: a piece can be cleared from a square if
			// it can move away or it can be captured on that square.

			for aux := Square(0); aux < 64; aux++ {
				if source == aux {
					continue
				}
				auxPiece, _, auxOccupied := pos.PieceOn(aux)

				if sys.variables[moveIndex(p, c, source, aux)] ||
					(auxOccupied && sys.variables[moveIndex(auxPiece, c.Other(), aux, source)]) {
					if !sys.variables[clearIndex(c, source)] {
						change = true
						sys.variables[clearIndex(c, source)] = true
						break
					}
				}
			}

			// Update Reach and Capture variables:
			// Reach(c,s) is true if a non-king c-colored piece can reach s
			// Capture(c,s) is true if some c-colored piece could capture on s

			for target := Square(0); target < 64; target++ {
				if !sys.variables[moveIndex(p, c, source, target)] {
					continue
				}
				if p != dragon.King && !sys.variables[reachIndex(c, target)] {
					change = true
					sys.variables[reachIndex(c, target)] = true
				}

				// Pawn captures are updated later
				if p != dragon.Pawn && !sys.variables[captureIndex(c, target)] {
					change = true
					sys.variables[captureIndex(c, target)] = true
				}
			}

			// Update the Movement variables

			for target := Square(0); target < 64; target++ {

				// If the target square contains a piece of color c that
				// cannot be cleared yet, skip it.
				if !sys.variables[clearIndex(c, target)] {
					continue
				}

				// The king cannot step onto a square attacked by an enemy
				// piece that can never be cleared away.
				if p == dragon.King {
					targetAttacked := false
					attackers := pos.AttackersTo(target, c.Other())

					for attackers != 0 {
						a := Square(popLSB(&attackers))
						if !sys.variables[clearIndex(c.Other(), a)] {
							targetAttacked = true
							break
						}
					}
					if targetAttacked {
						continue
					}
				}

				i := moveIndex(p, c, source, target)

				for j := 0; j < 8; j++ {

					eq := equations[i][j]
					if eq < 0 || sys.variables[i] {
						break
					}
					if !sys.variables[eq] {
						continue
					}

					if p == dragon.Pawn {

						// A pawn push cannot be performed if there is an
						// obstacle on the target square
						if j == 0 {
							if !sys.variables[clearIndex(c.Other(), target)] {
								continue
							}

							// or if the target holds an opposing pawn that
							// could never leave the file while the source
							// pawn cannot leave it either.

							tpiece, tcolor, tok := pos.PieceOn(target)

							if tok && tpiece == dragon.Pawn && tcolor != c &&
								fileOf(source) == fileOf(target) {
								confronting := true
								for aux := Square(0); aux < 64; aux++ {

									if fileOf(source) != fileOf(aux) {
										if sys.variables[moveIndex(p, c, source, aux)] ||
											sys.variables[moveIndex(dragon.Pawn, c.Other(), target, aux)] {
											confronting = false
											break
										}
									} else if (rankOf(source) < rankOf(aux) &&
										rankOf(aux) <= rankOf(target)) ||
										(rankOf(source) > rankOf(aux) &&
											rankOf(aux) >= rankOf(target)) {

										if sys.variables[captureIndex(c, aux)] {
											confronting = false
											break
										}
									}
								}

								if confronting {
									continue
								}
							}
						}

						// A pawn capture needs an opposing piece to arrive
						if j > 0 && !sys.variables[reachIndex(c.Other(), target)] {
							continue
						}

						if j > 0 {
							sys.variables[captureIndex(c, target)] = true
						}
					}

					change = true
					sys.variables[i] = true
					break
				}
			}

			// If the pawn can promote, it may go everywhere

			if p == dragon.Pawn {
				promRank := Square(0)
				if c == White {
					promRank = 56
				}
				for file := Square(0); file < 8; file++ {
					if !sys.variables[moveIndex(p, c, source, promRank+file)] {
						continue
					}
					for t := Square(0); t < 64; t++ {
						i := moveIndex(p, c, source, t)
						if !sys.variables[i] {
							change = true
							sys.variables[i] = true
						}
					}
					break
				}
			}
		}
	}
}

// KingRegion returns the squares the c-colored king may ever visit.
func (sys *System) KingRegion(pos *Position, c Color) uint64 {
	region := uint64(0)
	s := pos.KingSquare(c)
	for t := Square(0); t < 64; t++ {
		if sys.variables[moveIndex(dragon.King, c, s, t)] {
			region |= squareBB(t)
		}
	}
	return region
}

// Visitors returns the pieces of color c that can enter the region. Pawns
// whose movement is fully restricted are ignored; the a1 probe is the
// historical test for that and is kept as is.
func (sys *System) Visitors(pos *Position, region uint64, c Color) uint64 {
	visitors := uint64(0)
	for s := Square(0); s < 64; s++ {
		p, color, ok := pos.PieceOn(s)
		if !ok {
			continue
		}

		if p == dragon.Pawn && !sys.variables[moveIndex(p, c, s, squareA1)] {
			continue
		}

		for t := Square(0); t < 64; t++ {
			if color == c && region&squareBB(t) != 0 &&
				sys.variables[moveIndex(p, c, s, t)] {
				visitors |= squareBB(s)
				break
			}
		}
	}
	return visitors
}

// Unwinnable decides, from a saturated system, whether the intended winner
// can never deliver mate. Only single-colored-bishop scenarios can be
// concluded; everything else is "potentially winnable".
func (sys *System) Unwinnable(pos *Position, intendedWinner Color) bool {

	if hasLonelyPawns(pos) {
		return false
	}

	loserKingRegion := sys.KingRegion(pos, intendedWinner.Other())
	visitors := sys.Visitors(pos, loserKingRegion, intendedWinner) &^
		pos.PiecesOf(intendedWinner, dragon.King)

	// If there are no visitors, the position is unwinnable
	if visitors == 0 {
		return true
	}

	// Visitors of both square colors may combine into a mating pattern
	if visitors&DarkSquares != 0 && visitors&^DarkSquares != 0 {
		return false
	}

	// All visitors are of the same square color; if any is not a bishop,
	// declare the position potentially winnable
	for s := Square(0); s < 64; s++ {
		if visitors&squareBB(s) != 0 {
			if p, _, _ := pos.PieceOn(s); p != dragon.Bishop {
				return false
			}
		}
	}

	visitorsSquareColor := ^DarkSquares
	if visitors&DarkSquares != 0 {
		visitorsSquareColor = DarkSquares
	}

	allKings := pos.PiecesOf(White, dragon.King) | pos.PiecesOf(Black, dragon.King)

	// For every candidate checkmating square s:
	for s := Square(0); s < 64; s++ {
		// At least a visitor must go to s and s must be in the mating region
		matingBishops := sys.Visitors(pos, squareBB(s), intendedWinner) &^
			pos.PiecesOf(intendedWinner, dragon.King)

		if matingBishops == 0 || loserKingRegion&squareBB(s) == 0 {
			continue
		}

		escapingSquares := uint64(0)
		checkingSquares := uint64(0)
		for t := Square(0); t < 64; t++ {
			if squareDistance(s, t) == 1 && loserKingRegion&squareBB(t) != 0 {
				if ^visitorsSquareColor&squareBB(t) != 0 {
					escapingSquares |= squareBB(t)
				} else {
					checkingSquares |= squareBB(t)
				}
			}
		}

		// Check if Winner's king can collaborate on the checkmate
		activeWinnersKing := pos.PiecesOf(intendedWinner, dragon.King)&
			sys.Visitors(pos, neighbours(s), intendedWinner) != 0

		// If two mating diagonals point to s, Winner must have at least two
		// bishops in the region (or their king); otherwise Loser's king will
		// keep an escaping square
		twoDiagonals := checkingSquares&
			((checkingSquares>>2)|(checkingSquares>>16)) != 0

		if twoDiagonals && popcount(matingBishops) < 2 && !activeWinnersKing {
			continue
		}

		// Check if some escaping square cannot be reached by the blockers
		unblockable := false
		for e := Square(0); e < 64; e++ {
			if escapingSquares&squareBB(e) == 0 {
				continue
			}
			if sys.Visitors(pos, squareBB(e), intendedWinner.Other())&^allKings == 0 {
				unblockable = true
				break
			}
		}

		if unblockable && !activeWinnersKing {
			continue
		}

		// If there are as many blockers as escaping squares the position may
		// be winnable on s
		blockers := sys.Visitors(pos, escapingSquares, intendedWinner.Other()) &^ allKings

		blockersCnt := popcount(blockers)
		if activeWinnersKing {
			blockersCnt++
		}

		if popcount(escapingSquares) <= blockersCnt {
			return false
		}
	}

	// Winner's single-colored bishops cannot mate: every square in the
	// Loser's king region admits an opposite-colored escaping square that
	// Loser can keep open.

	return true
}

// SemiStaticUnwinnable reports whether the position is semi-statically
// unwinnable for the intended winner. Sound, not complete.
func (sys *System) SemiStaticUnwinnable(pos *Position, intendedWinner Color) bool {

	moves := pos.LegalMoves()

	// Checkmate or stalemate
	if len(moves) == 0 {
		return pos.Checkers() == 0 || pos.SideToMove() == intendedWinner
	}

	// If en passant is possible the pawn structure is about to change;
	// conclude nothing
	for _, m := range moves {
		if pos.IsEnPassant(m) {
			return false
		}
	}

	sys.Saturate(pos)
	return sys.Unwinnable(pos, intendedWinner)
}

// SemiStaticUnwinnableAfterOneMove reports whether every legal move leads to
// a semi-statically unwinnable position.
func (sys *System) SemiStaticUnwinnableAfterOneMove(pos *Position, intendedWinner Color) bool {

	moves := pos.LegalMoves()

	// Checkmate or stalemate
	if len(moves) == 0 {
		return pos.Checkers() == 0 || pos.SideToMove() == intendedWinner
	}

	for _, m := range moves {
		undo := pos.DoMove(m)
		unwinnable := sys.SemiStaticUnwinnable(pos, intendedWinner)
		undo()
		if !unwinnable {
			return false
		}
	}
	return true
}
