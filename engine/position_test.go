package engine

import (
	"testing"

	dragon "github.com/dylhunn/dragontoothmg"
)

func findMove(t *testing.T, pos *Position, uci string) dragon.Move {
	t.Helper()
	for _, m := range pos.LegalMoves() {
		if m.String() == uci {
			return m
		}
	}
	t.Fatalf("move %s not found", uci)
	return 0
}

func TestPieceOn(t *testing.T) {
	pos := mustPosition(t, dragon.Startpos)

	p, c, ok := pos.PieceOn(4) // e1
	if !ok || p != dragon.King || c != White {
		t.Fatalf("e1: got %v %v %v", p, c, ok)
	}
	p, c, ok = pos.PieceOn(62) // g8
	if !ok || p != dragon.Knight || c != Black {
		t.Fatalf("g8: got %v %v %v", p, c, ok)
	}
	if _, _, ok = pos.PieceOn(28); ok { // e4
		t.Fatal("e4 should be empty")
	}
}

func TestAttackersTo(t *testing.T) {
	pos := mustPosition(t, dragon.Startpos)

	// f3 is covered by the e2 and g2 pawns and the g1 knight.
	attackers := pos.AttackersTo(21, White)
	if popcount(attackers) != 3 {
		t.Fatalf("attackers to f3: got %d, want 3", popcount(attackers))
	}
	if attackers&squareBB(6) == 0 {
		t.Fatal("knight on g1 missing from attackers")
	}
}

func TestCheckersAndCanCaptureKing(t *testing.T) {
	pos := mustPosition(t, dragon.Startpos)
	if pos.Checkers() != 0 {
		t.Fatal("startpos is not a check")
	}
	if pos.CanCaptureKing() {
		t.Fatal("startpos is legal")
	}

	// White to move with the black king already en prise.
	pos = mustPosition(t, "4k3/8/8/8/8/8/8/4R1K1 w - -")
	if !pos.CanCaptureKing() {
		t.Fatal("expected an illegal position to be flagged")
	}
}

func TestDoMoveUndoRestores(t *testing.T) {
	pos := mustPosition(t, dragon.Startpos)
	key := pos.Key()

	undo := pos.DoMove(findMove(t, pos, "e2e4"))
	if pos.Key() == key {
		t.Fatal("key unchanged after a move")
	}
	undo()
	if pos.Key() != key {
		t.Fatal("key not restored after undo")
	}
	if len(pos.history) != 1 {
		t.Fatalf("history length %d after undo, want 1", len(pos.history))
	}
}

func TestRepetitionDetection(t *testing.T) {
	pos := mustPosition(t, dragon.Startpos)

	for _, uci := range []string{"g1f3", "g8f6", "f3g1"} {
		pos.DoMove(findMove(t, pos, uci))
		if pos.IsRepetition() {
			t.Fatalf("premature repetition after %s", uci)
		}
	}
	pos.DoMove(findMove(t, pos, "f6g8"))
	if !pos.IsRepetition() {
		t.Fatal("expected repetition after returning to the start position")
	}
}

func TestRepetitionResetByPawnMove(t *testing.T) {
	pos := mustPosition(t, dragon.Startpos)
	pos.DoMove(findMove(t, pos, "e2e4"))
	if pos.IsRepetition() {
		t.Fatal("pawn move cannot repeat")
	}
	if len(pos.history) != 1 {
		t.Fatalf("history not reset by a pawn move: %d entries", len(pos.history))
	}
}

func TestEnPassantDetection(t *testing.T) {
	pos := mustPosition(t, "4k3/8/8/3pP3/8/8/8/4K3 w - d6")

	ep := findMove(t, pos, "e5d6")
	if !pos.IsEnPassant(ep) {
		t.Fatal("e5d6 should be detected as en passant")
	}
	push := findMove(t, pos, "e5e6")
	if pos.IsEnPassant(push) {
		t.Fatal("e5e6 is a plain push")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	pos := mustPosition(t, dragon.Startpos)
	clone := pos.Clone()

	clone.DoMove(findMove(t, clone, "e2e4"))
	if pos.Key() == clone.Key() {
		t.Fatal("mutating the clone changed the original")
	}
}
