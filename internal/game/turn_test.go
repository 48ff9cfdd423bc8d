package game

import (
	"testing"

	"tinycheckers/internal/checkers"
)

func turnFrom(t *testing.T, board string, toMove checkers.Player) Turn {
	t.Helper()
	b, err := checkers.ParseBoard(board)
	if err != nil {
		t.Fatalf("parse board: %v", err)
	}
	s := NewState("Alice")
	s.Player2Name = "Bob"
	s.Board = b
	s.CurrentPlayer = toMove
	return Resume(s)
}

func at(r, c int) checkers.Coord { return checkers.Coord{Row: r, Col: c} }

func hasEffect(effects []Effect, e Effect) bool {
	for _, x := range effects {
		if x == e {
			return true
		}
	}
	return false
}

func pieces(b checkers.Board, p checkers.Player) int {
	n := 0
	for r := 0; r < checkers.Size; r++ {
		for c := 0; c < checkers.Size; c++ {
			if b.At(at(r, c)).Owner() == p {
				n++
			}
		}
	}
	return n
}

func TestSelectAndMove(t *testing.T) {
	tr := Start("Alice")
	tr.State.Player2Name = "Bob"

	tr, effects := tr.Click(at(5, 2))
	sel, ok := tr.Phase.(PieceSelected)
	if !ok {
		t.Fatalf("expected PieceSelected, got %T", tr.Phase)
	}
	if len(sel.Moves) != 2 || !hasEffect(effects, Render) {
		t.Fatalf("expected two destinations and a render, got %v %v", sel.Moves, effects)
	}

	tr, effects = tr.Click(at(4, 3))
	if _, ok := tr.Phase.(AwaitingSelection); !ok {
		t.Fatalf("expected AwaitingSelection after move, got %T", tr.Phase)
	}
	if tr.State.CurrentPlayer != checkers.P2 {
		t.Fatalf("turn should pass to P2")
	}
	if !hasEffect(effects, Publish) {
		t.Fatalf("completed move must be published, got %v", effects)
	}
	if tr.State.Board.At(at(4, 3)) != checkers.P1Man || tr.State.Board.At(at(5, 2)) != checkers.Empty {
		t.Fatalf("move not applied:\n%v", tr.State.Board)
	}
}

func TestClickDoesNotMutateReceiver(t *testing.T) {
	tr := Start("Alice")
	before := tr.State.Board
	selected, _ := tr.Click(at(5, 2))
	_, _ = selected.Click(at(4, 3))
	if tr.State.Board != before || selected.State.Board != before {
		t.Fatalf("Click mutated an earlier turn")
	}
	if _, ok := tr.Phase.(AwaitingSelection); !ok {
		t.Fatalf("phase of receiver changed to %T", tr.Phase)
	}
}

func TestMultiJumpKeepsTurn(t *testing.T) {
	tr := turnFrom(t, `
........
........
.b...b..
........
...b....
..r.....
........
........`, checkers.P1)

	tr, _ = tr.Click(at(5, 2))
	tr, effects := tr.Click(at(3, 4))

	cont, ok := tr.Phase.(AwaitingContinuation)
	if !ok {
		t.Fatalf("expected AwaitingContinuation, got %T", tr.Phase)
	}
	if tr.State.CurrentPlayer != checkers.P1 {
		t.Fatalf("turn must not pass during a continuation")
	}
	if tr.State.Pending == nil || *tr.State.Pending != at(3, 4) {
		t.Fatalf("pending piece not recorded: %v", tr.State.Pending)
	}
	if len(cont.Moves) != 1 || cont.Moves[0].To != at(1, 6) {
		t.Fatalf("unexpected continuation moves %v", cont.Moves)
	}
	if hasEffect(effects, Publish) || !hasEffect(effects, PublishPartial) {
		t.Fatalf("mid-chain effects should be partial only, got %v", effects)
	}

	// another piece cannot be picked while the chain is open
	locked, effects := tr.Click(at(2, 1))
	if _, ok := locked.Phase.(AwaitingContinuation); !ok || effects != nil {
		t.Fatalf("continuation lock broken: %T %v", locked.Phase, effects)
	}
	locked, _ = tr.Click(at(7, 7))
	if _, ok := locked.Phase.(AwaitingContinuation); !ok {
		t.Fatalf("clicking elsewhere must not drop the continuation")
	}

	tr, effects = tr.Click(at(1, 6))
	if tr.State.CurrentPlayer != checkers.P2 {
		t.Fatalf("turn should pass after the chain ends")
	}
	if tr.State.Pending != nil {
		t.Fatalf("pending piece should be cleared")
	}
	if !hasEffect(effects, Publish) {
		t.Fatalf("end of chain must be published")
	}
	if n := pieces(tr.State.Board, checkers.P2); n != 1 {
		t.Fatalf("expected one P2 piece left, got %d", n)
	}
}

func TestKingMayReverseDirectionMidChain(t *testing.T) {
	tr := turnFrom(t, `
.......b
........
........
..b.b...
.R......
........
........
........`, checkers.P1)

	tr, _ = tr.Click(at(4, 1))
	tr, _ = tr.Click(at(2, 3))
	cont, ok := tr.Phase.(AwaitingContinuation)
	if !ok {
		t.Fatalf("expected continuation, got %T", tr.Phase)
	}
	if _, ok := checkers.Find(cont.Moves, at(4, 5)); !ok {
		t.Fatalf("king should be able to jump back down, got %v", cont.Moves)
	}
	tr, _ = tr.Click(at(4, 5))
	if tr.State.CurrentPlayer != checkers.P2 || pieces(tr.State.Board, checkers.P2) != 1 {
		t.Fatalf("chain did not complete:\n%v", tr.State.Board)
	}
}

func TestPromotionMidChainContinuesAsKing(t *testing.T) {
	tr := turnFrom(t, `
........
..b.b...
.....r..
........
........
b.......
........
........`, checkers.P1)

	tr, _ = tr.Click(at(2, 5))
	tr, _ = tr.Click(at(0, 3))
	if tr.State.Board.At(at(0, 3)) != checkers.P1King {
		t.Fatalf("man landing on row 0 must be crowned immediately")
	}
	if _, ok := tr.Phase.(AwaitingContinuation); !ok {
		t.Fatalf("crowned piece should continue capturing, got %T", tr.Phase)
	}
	tr, _ = tr.Click(at(2, 1))
	if tr.State.Board.At(at(2, 1)) != checkers.P1King {
		t.Fatalf("king lost its crown")
	}
	if tr.State.CurrentPlayer != checkers.P2 {
		t.Fatalf("turn should pass")
	}
}

func TestCapturingLastPieceWins(t *testing.T) {
	tr := turnFrom(t, `
........
........
.....b..
....r...
........
........
........
........`, checkers.P1)

	tr, _ = tr.Click(at(3, 4))
	tr, effects := tr.Click(at(1, 6))
	over, ok := tr.Phase.(GameOver)
	if !ok {
		t.Fatalf("expected GameOver, got %T", tr.Phase)
	}
	if over.Winner != checkers.P1 || tr.State.Winner != checkers.P1 || !tr.State.IsGameOver {
		t.Fatalf("P1 should have won: %+v", tr.State)
	}
	if !hasEffect(effects, Publish) {
		t.Fatalf("final position must be published")
	}
	after, effects := tr.Click(at(1, 6))
	if effects != nil || after.State.Board != tr.State.Board {
		t.Fatalf("clicks after game over must be ignored")
	}
}

func TestBlockedOpponentLoses(t *testing.T) {
	tr := turnFrom(t, `
.b......
r.r.....
........
....r...
........
........
........
........`, checkers.P1)

	tr, _ = tr.Click(at(3, 4))
	tr, _ = tr.Click(at(2, 3))
	if !tr.State.IsGameOver || tr.State.Winner != checkers.P1 {
		t.Fatalf("P2 has no legal move and should lose: %+v", tr.State)
	}
	if tr.State.CurrentPlayer != checkers.P2 {
		t.Fatalf("the stuck player should be the one to move")
	}
}

func TestSelectionRespectsGlobalMandatoryCapture(t *testing.T) {
	tr := turnFrom(t, `
........
........
........
..b.....
...r....
........
.....r..
........`, checkers.P1)

	next, effects := tr.Click(at(6, 5))
	if _, ok := next.Phase.(AwaitingSelection); !ok || effects != nil {
		t.Fatalf("piece without a capture must not be selectable: %T %v", next.Phase, effects)
	}

	next, _ = tr.Click(at(4, 3))
	if _, ok := next.Phase.(PieceSelected); !ok {
		t.Fatalf("capturing piece should be selectable, got %T", next.Phase)
	}
	next, effects = next.Click(at(6, 5))
	if _, ok := next.Phase.(AwaitingSelection); !ok || !hasEffect(effects, Render) {
		t.Fatalf("rejected reselection should clear the selection: %T %v", next.Phase, effects)
	}
}

func TestClickElsewhereClearsSelection(t *testing.T) {
	tr := Start("Alice")
	tr, _ = tr.Click(at(5, 0))
	if _, ok := tr.Phase.(PieceSelected); !ok {
		t.Fatalf("expected selection")
	}
	tr, effects := tr.Click(at(3, 3))
	if _, ok := tr.Phase.(AwaitingSelection); !ok || !hasEffect(effects, Render) {
		t.Fatalf("expected cleared selection, got %T", tr.Phase)
	}
	if tr.State.CurrentPlayer != checkers.P1 {
		t.Fatalf("clearing a selection must not pass the turn")
	}

	same, effects := tr.Click(at(3, 3))
	if effects != nil || same.Phase != tr.Phase {
		t.Fatalf("click on empty square without selection should be a no-op")
	}
	if _, effects := tr.Click(at(9, 9)); effects != nil {
		t.Fatalf("off-board clicks should be ignored")
	}
}

func TestOpponentPieceIsNotSelectable(t *testing.T) {
	tr := Start("Alice")
	next, effects := tr.Click(at(2, 1))
	if _, ok := next.Phase.(AwaitingSelection); !ok || effects != nil {
		t.Fatalf("P1 must not select a P2 piece")
	}
}

func TestResume(t *testing.T) {
	b, _ := checkers.ParseBoard(`
........
........
.....b..
....r...
........
........
........
........`)
	s := NewState("Alice")
	s.Player2Name = "Bob"
	s.Board = b
	pending := at(3, 4)
	s.Pending = &pending

	tr := Resume(s)
	if _, ok := tr.Phase.(AwaitingContinuation); !ok {
		t.Fatalf("pending jump should resume as continuation, got %T", tr.Phase)
	}

	stale := at(2, 5)
	s.Pending = &stale
	tr = Resume(s)
	if _, ok := tr.Phase.(AwaitingSelection); !ok || tr.State.Pending != nil {
		t.Fatalf("pending square of the wrong owner must be dropped, got %T", tr.Phase)
	}

	s.Pending = nil
	s.IsGameOver = true
	s.Winner = checkers.P2
	if over, ok := Resume(s).Phase.(GameOver); !ok || over.Winner != checkers.P2 {
		t.Fatalf("finished game should resume as GameOver")
	}
}
