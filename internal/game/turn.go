package game

import "tinycheckers/internal/checkers"

// Phase is the controller's position in a turn. It is one of
// AwaitingSelection, PieceSelected, AwaitingContinuation or GameOver.
type Phase interface {
	Name() string
}

// AwaitingSelection: no piece is selected.
type AwaitingSelection struct{}

// PieceSelected holds a selected piece and its legal moves.
type PieceSelected struct {
	From  checkers.Coord
	Moves []checkers.Move
}

// AwaitingContinuation is entered after a jump that exposes another jump for
// the same piece. The turn does not pass and no other piece may be chosen.
type AwaitingContinuation struct {
	From  checkers.Coord
	Moves []checkers.Move
}

// GameOver is terminal.
type GameOver struct {
	Winner checkers.Player
}

func (AwaitingSelection) Name() string    { return "awaiting_selection" }
func (PieceSelected) Name() string        { return "piece_selected" }
func (AwaitingContinuation) Name() string { return "awaiting_continuation" }
func (GameOver) Name() string             { return "game_over" }

// Effect is a side effect requested by a transition. The caller interprets it.
type Effect int

const (
	// Render asks the UI to redraw.
	Render Effect = iota
	// Publish asks for the snapshot to be sent at the end of a turn.
	Publish
	// PublishPartial marks a snapshot taken mid multi-jump.
	PublishPartial
)

func (e Effect) String() string {
	switch e {
	case Render:
		return "render"
	case Publish:
		return "publish"
	case PublishPartial:
		return "publish_partial"
	default:
		return "unknown"
	}
}

// Turn pairs a snapshot with the controller phase. Click never mutates its
// receiver.
type Turn struct {
	State State
	Phase Phase
}

// Start begins a new game initiated by player1.
func Start(player1 string) Turn {
	return Turn{State: NewState(player1), Phase: AwaitingSelection{}}
}

// Resume derives the phase of a snapshot received from elsewhere.
func Resume(s State) Turn {
	if s.IsGameOver {
		return Turn{State: s, Phase: GameOver{Winner: s.Winner}}
	}
	if s.Pending != nil {
		jumps := checkers.JumpsFrom(s.Board, *s.Pending)
		if len(jumps) > 0 && s.Board.At(*s.Pending).Owner() == s.CurrentPlayer {
			return Turn{State: s, Phase: AwaitingContinuation{From: *s.Pending, Moves: jumps}}
		}
		s.Pending = nil
	}
	return Turn{State: s, Phase: AwaitingSelection{}}
}

// Selection returns the selected square and its destinations, if any.
func (t Turn) Selection() (checkers.Coord, []checkers.Move, bool) {
	switch p := t.Phase.(type) {
	case PieceSelected:
		return p.From, p.Moves, true
	case AwaitingContinuation:
		return p.From, p.Moves, true
	}
	return checkers.Coord{}, nil, false
}

// Click advances the controller with a clicked square. Clicks that mean
// nothing return the turn unchanged and no effects.
func (t Turn) Click(at checkers.Coord) (Turn, []Effect) {
	if !at.InBounds() {
		return t, nil
	}
	switch p := t.Phase.(type) {
	case GameOver:
		return t, nil
	case AwaitingContinuation:
		if m, ok := checkers.Find(p.Moves, at); ok {
			return t.play(m)
		}
		return t, nil
	case PieceSelected:
		if m, ok := checkers.Find(p.Moves, at); ok {
			return t.play(m)
		}
	}

	s := t.State
	if s.Board.At(at).Owner() == s.CurrentPlayer {
		moves := checkers.From(checkers.LegalMoves(s.Board, s.CurrentPlayer), at)
		if len(moves) > 0 {
			return Turn{State: s, Phase: PieceSelected{From: at, Moves: moves}}, []Effect{Render}
		}
	}
	if _, selected := t.Phase.(PieceSelected); selected {
		return Turn{State: s, Phase: AwaitingSelection{}}, []Effect{Render}
	}
	return t, nil
}

func (t Turn) play(m checkers.Move) (Turn, []Effect) {
	s := t.State
	s.Board = s.Board.Apply(m)
	s.Pending = nil

	if m.IsJump() {
		if next := checkers.JumpsFrom(s.Board, m.To); len(next) > 0 {
			to := m.To
			s.Pending = &to
			return Turn{State: s, Phase: AwaitingContinuation{From: to, Moves: next}},
				[]Effect{Render, PublishPartial}
		}
	}

	mover := s.CurrentPlayer
	s.CurrentPlayer = mover.Opponent()
	if len(checkers.LegalMoves(s.Board, s.CurrentPlayer)) == 0 {
		s.IsGameOver = true
		s.Winner = mover
		return Turn{State: s, Phase: GameOver{Winner: mover}}, []Effect{Render, Publish}
	}
	return Turn{State: s, Phase: AwaitingSelection{}}, []Effect{Render, Publish}
}
