package engine

import (
	"testing"

	dragon "github.com/dylhunn/dragontoothmg"
)

// verifyMateSequence plays the sequence from the given position and checks
// that it ends in a checkmate of the loser, then unwinds and checks the
// position is restored exactly.
func verifyMateSequence(t *testing.T, fen string, winner Color, sequence []dragon.Move) {
	t.Helper()
	pos := mustPosition(t, fen)
	key := pos.Key()

	var undos []func()
	for i, m := range sequence {
		legal := false
		for _, lm := range pos.LegalMoves() {
			if lm == m {
				legal = true
				break
			}
		}
		if !legal {
			t.Fatalf("move %d (%s) is not legal", i, m.String())
		}
		undos = append(undos, pos.DoMove(m))
	}

	if len(pos.LegalMoves()) != 0 {
		t.Fatal("sequence does not end the game")
	}
	if pos.Checkers() == 0 {
		t.Fatal("sequence ends in stalemate, not mate")
	}
	if pos.SideToMove() == winner {
		t.Fatal("the intended winner got mated")
	}

	for i := len(undos) - 1; i >= 0; i-- {
		undos[i]()
	}
	if pos.Key() != key {
		t.Fatal("undoing the sequence did not restore the position")
	}
}

func TestBareKingsUnwinnable(t *testing.T) {
	for _, winner := range []Color{White, Black} {
		pos := mustPosition(t, "4k3/8/4K3/8/8/8/8/8 w - -")
		search := NewSearch(winner)
		if result := FullAnalysis(pos, search); result != Unwinnable {
			t.Errorf("bare kings for %v: got %v, want unwinnable", winner, result)
		}
	}
}

func TestLoneKnightUnwinnable(t *testing.T) {
	// A single knight cannot mate a bare king, and the loser has no pawn to
	// promote into the missing material.
	for _, winner := range []Color{White, Black} {
		pos := mustPosition(t, "8/8/8/4k3/8/8/8/N1K5 w - -")
		search := NewSearch(winner)
		if result := FullAnalysis(pos, search); result != Unwinnable {
			t.Errorf("KN vs K for %v: got %v, want unwinnable", winner, result)
		}
	}
}

func TestLoneBishopUnwinnable(t *testing.T) {
	for _, winner := range []Color{White, Black} {
		pos := mustPosition(t, "8/8/8/3bk3/8/8/8/4K3 w - -")
		search := NewSearch(winner)
		if result := FullAnalysis(pos, search); result != Unwinnable {
			t.Errorf("KB vs K for %v: got %v, want unwinnable", winner, result)
		}
	}
}

func TestMateInOneWinnable(t *testing.T) {
	const fen = "k7/7R/6R1/8/8/8/8/K7 w - -"

	pos := mustPosition(t, fen)
	search := NewSearch(White)
	if result := FullAnalysis(pos, search); result != Winnable {
		t.Fatalf("got %v, want winnable", result)
	}
	verifyMateSequence(t, fen, White, search.MateSequence())

	// Black keeps a bare king and can never win.
	pos = mustPosition(t, fen)
	search = NewSearch(Black)
	if result := FullAnalysis(pos, search); result != Unwinnable {
		t.Fatalf("bare-king side: got %v, want unwinnable", result)
	}
}

func TestMateAlreadyOnBoard(t *testing.T) {
	// Final position of the fool's mate; White is mated.
	const fen = "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq -"

	pos := mustPosition(t, fen)
	search := NewSearch(Black)
	if result := FullAnalysis(pos, search); result != Winnable {
		t.Fatalf("winner black: got %v, want winnable", result)
	}
	if len(search.MateSequence()) != 0 {
		t.Fatalf("mate in zero plies should carry an empty sequence")
	}

	// For White the game is over without a mate of Black: unwinnable.
	pos = mustPosition(t, fen)
	search = NewSearch(White)
	if result := FullAnalysis(pos, search); result != Unwinnable {
		t.Fatalf("winner white: got %v, want unwinnable", result)
	}
}

func TestBlockedTrapUnwinnableForBlack(t *testing.T) {
	pos := mustPosition(t, blockedBishopTrapFEN)
	search := NewSearch(Black)
	if result := FullAnalysis(pos, search); result != Unwinnable {
		t.Fatalf("got %v, want unwinnable", result)
	}
	if search.Phase() != PhaseStatic {
		t.Fatalf("expected the semi-static phase to decide, got phase %d", search.Phase())
	}
}

// The long fortress helpmate: the analysis must never call the White side
// unwinnable (a mate exists), and any mate it reports must check out.
func TestFortressNotUnwinnableForWhite(t *testing.T) {
	if testing.Short() {
		t.Skip("deep helpmate search")
	}
	const fen = "Bb2kb2/bKp1p1p1/1pP1P1P1/pP6/6P1/P7/8/8 b - -"

	pos := mustPosition(t, fen)
	search := NewSearch(White)
	search.SetLimit(5000000)
	result := FullAnalysis(pos, search)

	if result == Unwinnable {
		t.Fatal("winnable fortress misclassified as unwinnable")
	}
	if result == Winnable {
		verifyMateSequence(t, fen, White, search.MateSequence())
	}
}

// Quick analysis is sound with respect to the full analysis.
func TestQuickImpliesFull(t *testing.T) {
	fens := []string{
		"4k3/8/4K3/8/8/8/8/8 w - -",
		"8/8/8/4k3/8/8/8/N1K5 w - -",
		"8/8/8/3bk3/8/8/8/4K3 w - -",
		blockedBishopTrapFEN,
		"k7/7R/6R1/8/8/8/8/K7 w - -",
		dragon.Startpos,
	}

	for _, fen := range fens {
		for _, winner := range []Color{White, Black} {
			quickSearch := NewSearch(winner)
			quickResult := QuickAnalysis(mustPosition(t, fen), quickSearch)
			if quickResult != Unwinnable {
				continue
			}
			fullSearch := NewSearch(winner)
			if fullResult := FullAnalysis(mustPosition(t, fen), fullSearch); fullResult != Unwinnable {
				t.Errorf("%s (%v): quick says unwinnable, full says %v", fen, winner, fullResult)
			}
		}
	}
}

// The semi-static oracle is sound with respect to the full analysis.
func TestSemiStaticImpliesFull(t *testing.T) {
	fens := []string{
		blockedBishopTrapFEN,
		"Bb2kb2/bKp1p1p1/1pP1P1P1/pP6/6P1/P7/8/8 b - -",
		"k7/8/1Q6/8/8/8/8/K7 b - -",
	}

	for _, fen := range fens {
		for _, winner := range []Color{White, Black} {
			sys := &System{}
			if !sys.SemiStaticUnwinnable(mustPosition(t, fen), winner) {
				continue
			}
			search := NewSearch(winner)
			if result := FullAnalysis(mustPosition(t, fen), search); result != Unwinnable {
				t.Errorf("%s (%v): oracle says unwinnable, full says %v", fen, winner, result)
			}
		}
	}
}

func TestFindShortestMateInOne(t *testing.T) {
	pos := mustPosition(t, "k7/7R/6R1/8/8/8/8/K7 w - -")
	search := NewSearch(White)
	if result := FindShortest(pos, search); result != Winnable {
		t.Fatalf("got %v, want winnable", result)
	}
	if len(search.MateSequence()) != 1 {
		t.Fatalf("mate length %d, want 1", len(search.MateSequence()))
	}
	verifyMateSequence(t, "k7/7R/6R1/8/8/8/8/K7 w - -", White, search.MateSequence())
}

func TestFindShortestKnightPromotionMate(t *testing.T) {
	if testing.Short() {
		t.Skip("exhaustive six-ply search")
	}
	const fen = "8/4K2k/4P2p/8/3b1q2/8/8/8 b - -"

	pos := mustPosition(t, fen)
	search := NewSearch(White)
	search.SetLimit(2000000)
	if result := FindShortest(pos, search); result != Winnable {
		t.Fatalf("got %v, want winnable", result)
	}
	if len(search.MateSequence()) != 6 {
		t.Fatalf("mate length %d, want 6", len(search.MateSequence()))
	}
	verifyMateSequence(t, fen, White, search.MateSequence())
}

func TestUndeterminedUnderTinyBudget(t *testing.T) {
	// With a single-node global budget the trap cannot be resolved for White.
	pos := mustPosition(t, blockedBishopTrapFEN)
	search := NewSearch(White)
	search.SetLimit(1)
	if result := FullAnalysis(pos, search); result != Undetermined {
		t.Fatalf("got %v, want undetermined", result)
	}
}

func TestIsDead(t *testing.T) {
	dead := mustPosition(t, "4k3/8/4K3/8/8/8/8/8 w - -")
	if !IsDead(dead) {
		t.Error("bare kings should be a dead draw")
	}

	alive := mustPosition(t, dragon.Startpos)
	if IsDead(alive) {
		t.Error("the starting position is not dead")
	}
}

func TestForcedPrefixCarriedIntoSequence(t *testing.T) {
	// Black's first reply is forced (h8h7); the reported mate must start
	// with it and still verify from the root.
	const fen = "7k/5K2/8/8/8/8/8/6R1 b - -"
	pos := mustPosition(t, fen)
	search := NewSearch(White)
	if result := FullAnalysis(pos, search); result != Winnable {
		t.Fatalf("got %v, want winnable", result)
	}
	seq := search.MateSequence()
	if len(seq) == 0 || seq[0].String() != "h8h7" {
		t.Fatalf("sequence %v does not start with the forced move", seq)
	}
	verifyMateSequence(t, fen, White, seq)
}

func TestSearchSequenceBookkeeping(t *testing.T) {
	s := NewSearch(White)
	s.Init()

	var m dragon.Move
	s.PushForced(m)
	s.Set(4, 100)

	if s.ActualDepth() != 1 {
		t.Fatalf("depth after prefix = %d, want 1", s.ActualDepth())
	}
	if s.MaxDepth() != 5 {
		t.Fatalf("max depth = %d, want prefix+4 = 5", s.MaxDepth())
	}

	s.AnnotateMove(m)
	s.Step()
	s.AnnotateMove(m)
	s.Step()
	s.SetWinnable()
	if len(s.MateSequence()) != 3 {
		t.Fatalf("sequence length = %d, want 3", len(s.MateSequence()))
	}

	s.UndoStep()
	s.UndoStep()
	if s.ActualDepth() != 1 {
		t.Fatalf("depth after undo = %d, want 1", s.ActualDepth())
	}
}
