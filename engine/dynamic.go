package engine

import (
	dragon "github.com/dylhunn/dragontoothmg"
)

// Rewarded variations stop being deepened past this real ply count; an
// empirically tuned constant, kept for reproducibility.
const rewardCutoffDepth = 300

const (
	quickSearchDepth      = 2
	quickSearchLocalLimit = 5000
	fullSearchLocalLimit  = 10000
	maxIterativeDepth     = 1000
	trivialProgressBound  = 100
)

// We reward variations that bring pieces closer to a mating position in a
// corner. The corner lies on the relative 8-th rank of the intended winner
// and its square color depends on the bishops in the position. E.g. if the
// corner is dark and White is supposed to win, the corner is H8: we want
// Loser's king on H8, Winner's king on H6 (or G6), a Loser's piece on G8
// blocking the exit and any Winner's piece pointing at H8 delivering mate.
// setTarget returns the desired square for the moving piece accordingly.
func setTarget(pos *Position, movedPiece dragon.Piece, winner Color) Square {

	// A dark corner if Winner has a dark-squared bishop, or Loser has a
	// light-squared bishop and Winner has none.

	winnerBishops := pos.PiecesOf(winner, dragon.Bishop)
	loserBishops := pos.PiecesOf(winner.Other(), dragon.Bishop)

	darkCorner := DarkSquares&winnerBishops != 0 ||
		(winnerBishops == 0 && ^DarkSquares&loserBishops != 0)

	king := movedPiece == dragon.King
	isWinnersTurn := pos.SideToMove() == winner

	// Assume for a moment that the target corner is H8
	var target Square
	if isWinnersTurn {
		if king {
			target = squareH6
		} else {
			target = squareH8
		}
	} else {
		if king {
			target = squareH8
		} else {
			target = squareG8
		}
	}

	// Correct the file in case we need a light corner (the corner becomes A8)
	if !darkCorner {
		target = flipFile(target)
	}

	// Correct the rank in case Winner is Black (the corner becomes A1 or H1)
	if winner == Black {
		target = flipRank(flipFile(target))
	}

	return target
}

// goingToSquare decides whether a move brings its piece closer to a given
// square; only meaningful for slow pieces.
func goingToSquare(m dragon.Move, s Square, p dragon.Piece, checkBishops bool) bool {
	from := Square(m.From())
	to := Square(m.To())

	if p == dragon.King || (checkBishops && p == dragon.Bishop) {
		return squareDistance(to, s) < squareDistance(from, s)
	}
	if p == dragon.Knight {
		return KnightDistanceGet(to, s) < KnightDistanceGet(from, s)
	}
	return false
}

// advancedPawnPush reports a pawn move into the opponent's half beyond its
// fifth rank.
func advancedPawnPush(pos *Position, m dragon.Move, movedPiece dragon.Piece) bool {
	if movedPiece != dragon.Pawn {
		return false
	}
	relRank := rankOf(Square(m.To()))
	if pos.SideToMove() == Black {
		relRank = 7 - relRank
	}
	return relRank > 4
}

// needLoserPromotion checks whether Loser must promote for Winner to be able
// to checkmate. It may give false positives: the output can be true even if
// a mating sequence without promotions exists. (We do not care about those
// sequences and will reward the pawn pushes whenever the output is true.)
func needLoserPromotion(pos *Position, winner Color) bool {
	loser := winner.Other()

	minorPieces := pos.PiecesOf(White, dragon.Knight) | pos.PiecesOf(Black, dragon.Knight) |
		pos.PiecesOf(White, dragon.Bishop) | pos.PiecesOf(Black, dragon.Bishop)
	rooks := pos.PiecesOf(White, dragon.Rook) | pos.PiecesOf(Black, dragon.Rook)

	// Winner has just a knight and Loser only has pawns and/or queen(s)
	if popcount(pos.Pieces(winner)) == 2 &&
		popcount(pos.PiecesOf(winner, dragon.Knight)) == 1 &&
		pos.Pieces(loser)&(minorPieces|rooks) == 0 {
		return true
	}

	// Winner has just (same colored) bishops and Loser has no knights nor
	// bishops of the opposite color.
	allBishops := pos.PiecesOf(White, dragon.Bishop) | pos.PiecesOf(Black, dragon.Bishop)
	bishopsColor := ^DarkSquares
	if DarkSquares&pos.PiecesOf(winner, dragon.Bishop) != 0 {
		bishopsColor = DarkSquares
	}
	if popcount(pos.Pieces(winner)) == popcount(pos.PiecesOf(winner, dragon.Bishop))+1 &&
		^bishopsColor&allBishops == 0 &&
		pos.PiecesOf(loser, dragon.Knight) == 0 {
		return true
	}

	return false
}

// impossibleToWin statically checks that Winner can never checkmate. Never
// gives false positives (but is of course not complete). It relies on
// needLoserPromotion only after making sure Loser has no pawns, where that
// test is exact.
func impossibleToWin(pos *Position, winner Color) bool {

	// Winner has just the king
	if popcount(pos.Pieces(winner)) == 1 {
		return true
	}

	// A promotion by Loser is needed, but Loser has no pawns.
	return pos.PiecesOf(winner.Other(), dragon.Pawn) == 0 &&
		needLoserPromotion(pos, winner)
}

// variationType classifies moves during findMate; the search goes deeper on
// rewarded variations and is truncated on punished ones.
type variationType uint8

const (
	normalVariation variationType = iota
	rewardVariation
	punishVariation
)

// findMate performs an exhaustive search (with many tricks) over the tree of
// moves, ending as soon as a checkmate delivered by the intended winner is
// found or the depth budget runs out. Returns true when a mate has been
// recorded on the search state.
func findMate(pos *Position, search *Search, depth int, mode SearchMode,
	target SearchTarget, pastProgress, wasSemiBlocked bool) bool {

	winner := search.Winner()
	loser := winner.Other()

	movesLeft := int32(search.MaxDepth() - depth)

	// If the position was already seen with at least this much depth left,
	// the branch can be skipped.
	if mode == FullMode {
		if stored, found := search.tt.probe(pos.Key()); found && stored >= movesLeft {
			return false
		}
	}

	// Insufficient material to win
	if impossibleToWin(pos, winner) {
		return false
	}

	moves := pos.LegalMoves()

	// Checkmate!
	if len(moves) == 0 && pos.Checkers() != 0 && pos.SideToMove() == loser {
		search.SetWinnable()
		return true
	}

	// Search limits
	if depth >= search.MaxDepth() || search.IsLocalLimitReached() {
		search.Interrupt()
		return false
	}

	// Store this position in the TT (we are about to analyze it at depth
	// movesLeft)
	if mode == FullMode {
		search.tt.save(pos.Key(), movesLeft)
	}

	// Check if Loser has to promote because Winner lacks mating material
	loserPromotionNeeded := needLoserPromotion(pos, winner)
	isWinnersTurn := pos.SideToMove() == winner

	krq := pos.PiecesOf(White, dragon.Knight) | pos.PiecesOf(Black, dragon.Knight) |
		pos.PiecesOf(White, dragon.Rook) | pos.PiecesOf(Black, dragon.Rook) |
		pos.PiecesOf(White, dragon.Queen) | pos.PiecesOf(Black, dragon.Queen)
	onlyPawnsAndBishops := krq == 0

	var unblockingTarget Square
	semiBlocked := false
	if onlyPawnsAndBishops {
		unblockingTarget, semiBlocked = semiBlockedTarget(pos)
	}

	// Iterate over all legal moves
	for _, m := range moves {
		variation := normalVariation
		movedPiece := pos.MovedPiece(m)

		if target == AnyTarget {
			corner := setTarget(pos, movedPiece, winner)

			if isWinnersTurn {
				if advancedPawnPush(pos, m, movedPiece) || pos.IsCapture(m) ||
					goingToSquare(m, corner, movedPiece, false) {
					variation = rewardVariation
				}
			} else {
				if loserPromotionNeeded {
					promoted := m.Promote() // possibly dragon.Nothing
					heavyProm := promoted == dragon.Queen || promoted == dragon.Rook
					if movedPiece == dragon.Pawn && !heavyProm {
						variation = rewardVariation
					} else {
						variation = punishVariation
					}
				}

				if goingToSquare(m, corner, movedPiece, false) {
					variation = rewardVariation
				}

				if pos.IsCapture(m) {
					variation = punishVariation
				}
			}
		}

		// Heuristic for semi-blocked positions
		if onlyPawnsAndBishops && nbBlockedPawns(pos) >= 4 && !hasLonelyPawns(pos) {

			if semiBlocked || wasSemiBlocked {

				if pos.IsCapture(m) && isWinnersTurn {
					variation = rewardVariation
				} else if movedPiece == dragon.King {
					variation = normalVariation
					if semiBlocked && goingToSquare(m, unblockingTarget, movedPiece, false) {
						variation = rewardVariation
					}
				} else {
					variation = punishVariation
				}

			} else {
				// Not semi-blocked: converge slow pieces on the corner while
				// Loser keeps a bishop pair
				corner := setTarget(pos, movedPiece, winner)
				if goingToSquare(m, corner, movedPiece, true) &&
					popcount(pos.PiecesOf(loser, dragon.Bishop)) > 1 {
					variation = rewardVariation
				}
			}
		}

		// Apply the move
		undo := pos.DoMove(m)

		newDepth := depth + 1

		if target == AnyTarget {
			// Do not reward while Loser has queen(s) if it was their turn
			if !isWinnersTurn && pos.PiecesOf(loser, dragon.Queen) != 0 &&
				variation == rewardVariation {
				variation = normalVariation
			}

			// Do not reward after a certain depth
			if search.ActualDepth() > rewardCutoffDepth && variation == rewardVariation {
				variation = normalVariation
			}

			switch variation {
			case rewardVariation:
				newDepth--
			case punishVariation:
				newDepth = Min(search.MaxDepth(), newDepth+2)
			default:
				if pastProgress { // reward if the previous player made progress
					newDepth--
				}
			}
		}

		// Continue the search from the new position
		search.AnnotateMove(m)
		search.Step()

		checkmate := findMate(pos, search, newDepth, mode, target,
			variation == rewardVariation, semiBlocked || wasSemiBlocked)

		search.UndoStep()
		undo()

		if checkmate {
			return true
		}

	} // end of iteration over legal moves

	return false
}

// dynamicallyUnwinnable proves unwinnability by exhausting every variation up
// to the given depth. A mate found on the way is recorded on the search
// state.
func dynamicallyUnwinnable(pos *Position, depth int, winner Color, search *Search) bool {

	// Insufficient material to win
	if impossibleToWin(pos, winner) {
		return true
	}

	moves := pos.LegalMoves()

	// Checkmate!
	if len(moves) == 0 && pos.Checkers() != 0 {
		if pos.SideToMove() == winner {
			return true
		}
		search.SetWinnable()
		return false
	}

	// Maximum depth reached
	if depth <= 0 {
		return false
	}

	// Iterate over all legal moves
	for _, m := range moves {
		undo := pos.DoMove(m)
		search.AnnotateMove(m)
		search.Step()
		unwinnable := dynamicallyUnwinnable(pos, depth-1, winner, search)
		search.UndoStep()
		undo()

		if !unwinnable {
			return false
		}
	}

	return true
}

// iterativeDeepening drives findMate in Full mode over increasing depths
// until a verdict is reached or the global budget runs out. findMate may
// look deeper than maxDepth on rewarded variations.
func iterativeDeepening(pos *Position, search *Search) SearchResult {
	search.tt.reset()

	for maxDepth := 2; maxDepth <= maxIterativeDepth; maxDepth++ {
		search.Set(maxDepth, fullSearchLocalLimit)
		mate := findMate(pos, search, search.ActualDepth(), FullMode, AnyTarget, false, false)

		if !search.IsInterrupted() && !mate {
			search.SetUnwinnable()
		}

		if search.Result() != Undetermined || search.IsLimitReached() {
			break
		}
	}
	return search.Result()
}

// FullAnalysis is the complete decision pipeline: trivial progress, a quick
// shallow search, the semi-static oracle, a one-ply semi-static lookahead
// and finally iterative deepening. The position is advanced past forced
// moves, so callers that need it afterwards should pass a clone.
func FullAnalysis(pos *Position, search *Search) SearchResult {
	search.Init()
	winner := search.Winner()
	loser := winner.Other()

	// A position where the opposing king is already en prise cannot have
	// been reached legally; it is reported as unwinnable.
	if pos.CanCaptureKing() {
		search.SetUnwinnable()
		return search.Result()
	}

	// While there is a single legal reply, play it. Running into a repeated
	// position on the way means the game is drawn by force.
	if trivialProgress(pos, search, trivialProgressBound) {
		search.SetUnwinnable()
		return search.Result()
	}

	moves := pos.LegalMoves()
	if len(moves) == 0 {
		if pos.Checkers() != 0 && pos.SideToMove() == loser {
			search.SetWinnable()
		} else {
			search.SetUnwinnable()
		}
		return search.Result()
	}

	if impossibleToWin(pos, winner) {
		search.SetUnwinnable()
		return search.Result()
	}

	// Quick shallow search (may be deeper on rewarded variations)
	search.Set(quickSearchDepth, quickSearchLocalLimit)
	mate := findMate(pos, search, search.ActualDepth(), QuickMode, AnyTarget, false, false)

	if !search.IsInterrupted() && !mate {
		search.SetUnwinnable()
	}
	if search.Result() != Undetermined {
		return search.Result()
	}

	search.SetPhase(PhaseStatic)
	if search.system.SemiStaticUnwinnable(pos, winner) {
		search.SetUnwinnable()
		return search.Result()
	}

	// One-ply semi-static lookahead: a move whose every continuation is
	// semi-statically unwinnable need not be searched.
	surviving := make([]dragon.Move, 0, len(moves))
	for _, m := range moves {
		child := pos.Clone()
		child.DoMove(m)
		if trivialProgressQuiet(child, trivialProgressBound) {
			continue // forced repetition, drawn subtree
		}
		if !search.system.SemiStaticUnwinnable(child, winner) {
			surviving = append(surviving, m)
		}
	}
	if len(surviving) == 0 {
		search.SetUnwinnable()
		return search.Result()
	}

	search.SetPhase(PhasePostStatic)

	// When the lookahead pruned nothing, iterate on the root directly.
	if len(surviving) == len(moves) {
		return iterativeDeepening(pos, search)
	}

	allUnwinnable := true
	for _, m := range surviving {
		undo := pos.DoMove(m)
		search.PushForced(m)
		result := iterativeDeepening(pos, search)
		search.PopForced()
		undo()

		if result == Winnable {
			return search.Result()
		}
		if result != Unwinnable {
			allUnwinnable = false
		}
		if search.IsLimitReached() {
			allUnwinnable = false
			break
		}
	}

	if allUnwinnable {
		search.SetUnwinnable()
	} else {
		search.setUndetermined()
	}
	return search.Result()
}

// QuickAnalysis is the cheap pipeline used for batch scanning: trivial
// progress, a shallow exhaustive proof search, then the semi-static checks
// gated on blocked-pawn candidates. It concludes Unwinnable, or Winnable when
// the exhaustive search runs into a mate; otherwise the result stays
// Undetermined.
func QuickAnalysis(pos *Position, search *Search) SearchResult {
	search.Init()
	search.Set(0, 0)
	winner := search.Winner()

	krq := pos.PiecesOf(White, dragon.Knight) | pos.PiecesOf(Black, dragon.Knight) |
		pos.PiecesOf(White, dragon.Rook) | pos.PiecesOf(Black, dragon.Rook) |
		pos.PiecesOf(White, dragon.Queen) | pos.PiecesOf(Black, dragon.Queen)
	onlyPawnsAndBishops := krq == 0
	almostOnlyPawnsAndBishops := popcount(krq) <= 1

	if trivialProgress(pos, search, trivialProgressBound) {
		search.SetUnwinnable()
		return search.Result()
	}

	depth := 7
	if onlyPawnsAndBishops {
		moves := pos.LegalMoves()
		nonKingMover := false
		for _, m := range moves {
			if pos.MovedPiece(m) != dragon.King {
				nonKingMover = true
				break
			}
		}
		if len(moves) <= 5 && nonKingMover {
			depth = 15
		}
	}

	unwinnable := dynamicallyUnwinnable(pos, depth, winner, search)

	blockedCandidate := nbBlockedPawns(pos) >= 1 && !hasLonelyPawns(pos)

	if blockedCandidate && !unwinnable && onlyPawnsAndBishops {
		if search.system.SemiStaticUnwinnable(pos, winner) {
			unwinnable = true
		}
	}

	knights := pos.PiecesOf(White, dragon.Knight) | pos.PiecesOf(Black, dragon.Knight)
	if blockedCandidate && !unwinnable &&
		almostOnlyPawnsAndBishops && (pos.Checkers() != 0 || knights != 0) {
		if search.system.SemiStaticUnwinnableAfterOneMove(pos, winner) {
			unwinnable = true
		}
	}

	if unwinnable {
		search.SetUnwinnable()
	}

	return search.Result()
}

// FindShortest looks for a shortest mate: iterative deepening without depth
// adjustments, stepping two plies at a time on the parity of the winner's
// turn.
func FindShortest(pos *Position, search *Search) SearchResult {
	search.Init()
	winner := search.Winner()

	if search.system.SemiStaticUnwinnable(pos, winner) {
		search.SetUnwinnable()
		return search.Result()
	}

	search.tt.reset()

	start := 0
	if pos.SideToMove() == winner {
		start = 1
	}

	for depth := start; depth <= maxIterativeDepth; depth += 2 {
		search.Set(depth, search.GetLimit())
		mate := findMate(pos, search, search.ActualDepth(), FullMode, ShortestTarget, false, false)

		if !search.IsInterrupted() && !mate {
			search.SetUnwinnable()
		}

		if search.Result() != Undetermined || search.IsLimitReached() {
			break
		}
	}

	return search.Result()
}

// IsDead reports whether neither player can ever deliver mate (a dead draw).
// Quick analysis only, so false negatives are possible on hard positions.
func IsDead(pos *Position) bool {
	search := NewSearch(White)
	search.SetLimit(5000000)
	if QuickAnalysis(pos.Clone(), search) != Unwinnable {
		return false
	}

	search = NewSearch(Black)
	search.SetLimit(5000000)
	return QuickAnalysis(pos.Clone(), search) == Unwinnable
}
