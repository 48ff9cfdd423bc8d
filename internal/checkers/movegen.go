package checkers

// Move is a single step from one square to another. There are no multi-square
// flying moves: a row delta of 1 is a simple move and 2 is a jump.
type Move struct {
	From Coord `json:"from"`
	To   Coord `json:"to"`
}

// IsJump reports whether the move captures.
func (m Move) IsJump() bool {
	d := m.To.Row - m.From.Row
	return d == 2 || d == -2
}

// Captured returns the midpoint square a jump passes over.
func (m Move) Captured() Coord {
	return Coord{Row: (m.From.Row + m.To.Row) / 2, Col: (m.From.Col + m.To.Col) / 2}
}

func (m Move) String() string {
	return m.From.String() + "->" + m.To.String()
}

var (
	p1Forward = []Coord{{-1, -1}, {-1, 1}}
	p2Forward = []Coord{{1, -1}, {1, 1}}
	allDirs   = []Coord{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
)

// directions lists the diagonal steps a piece may take.
func directions(s Square) []Coord {
	switch s {
	case P1Man:
		return p1Forward
	case P2Man:
		return p2Forward
	case P1King, P2King:
		return allDirs
	default:
		return nil
	}
}

// JumpsFrom returns the captures available to the piece at from.
func JumpsFrom(b Board, from Coord) []Move {
	piece := b.At(from)
	owner := piece.Owner()
	if owner == NoPlayer {
		return nil
	}
	var jumps []Move
	for _, d := range directions(piece) {
		over := Coord{from.Row + d.Row, from.Col + d.Col}
		land := Coord{over.Row + d.Row, over.Col + d.Col}
		if !land.InBounds() {
			continue
		}
		if b.At(over).Owner() == owner.Opponent() && b.At(land) == Empty {
			jumps = append(jumps, Move{From: from, To: land})
		}
	}
	return jumps
}

// stepsFrom returns the non-capturing moves of the piece at from.
func stepsFrom(b Board, from Coord) []Move {
	piece := b.At(from)
	if piece == Empty {
		return nil
	}
	var steps []Move
	for _, d := range directions(piece) {
		to := Coord{from.Row + d.Row, from.Col + d.Col}
		if to.InBounds() && b.At(to) == Empty {
			steps = append(steps, Move{From: from, To: to})
		}
	}
	return steps
}

// movesFrom returns every move of the piece at from, ignoring what the
// player's other pieces could do.
func movesFrom(b Board, from Coord) []Move {
	return dedupe(append(stepsFrom(b, from), JumpsFrom(b, from)...))
}

// LegalMoves returns the moves player may make. When any piece can capture,
// only captures are returned. An empty result means player has lost.
func LegalMoves(b Board, player Player) []Move {
	capture := hasJump(b, player)
	var moves []Move
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			from := Coord{r, c}
			if b.At(from).Owner() != player {
				continue
			}
			if capture {
				moves = append(moves, JumpsFrom(b, from)...)
			} else {
				moves = append(moves, movesFrom(b, from)...)
			}
		}
	}
	return dedupe(moves)
}

// hasJump reports whether any piece of player can capture.
func hasJump(b Board, player Player) bool {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			from := Coord{r, c}
			if b.At(from).Owner() == player && len(JumpsFrom(b, from)) > 0 {
				return true
			}
		}
	}
	return false
}

// From filters moves down to those starting at c.
func From(moves []Move, c Coord) []Move {
	var out []Move
	for _, m := range moves {
		if m.From == c {
			out = append(out, m)
		}
	}
	return out
}

// Find returns the move in moves that lands on to.
func Find(moves []Move, to Coord) (Move, bool) {
	for _, m := range moves {
		if m.To == to {
			return m, true
		}
	}
	return Move{}, false
}

func dedupe(moves []Move) []Move {
	if len(moves) < 2 {
		return moves
	}
	seen := make(map[Move]struct{}, len(moves))
	out := moves[:0]
	for _, m := range moves {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
