package checkers

import (
	"fmt"
	"strings"
)

// Size is the width and height of the board.
const Size = 8

// Player identifies one of the two sides.
type Player uint8

const (
	NoPlayer Player = iota
	P1
	P2
)

// Opponent returns the other side.
func (p Player) Opponent() Player {
	switch p {
	case P1:
		return P2
	case P2:
		return P1
	default:
		return NoPlayer
	}
}

func (p Player) String() string {
	switch p {
	case P1:
		return "p1"
	case P2:
		return "p2"
	default:
		return ""
	}
}

// MarshalText encodes the player as "p1", "p2" or "" for nobody.
func (p Player) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (p *Player) UnmarshalText(b []byte) error {
	switch string(b) {
	case "p1":
		*p = P1
	case "p2":
		*p = P2
	case "":
		*p = NoPlayer
	default:
		return fmt.Errorf("unknown player %q", string(b))
	}
	return nil
}

// Square is the content of one board cell. The values double as the
// five-letter alphabet of the link encoding.
type Square uint8

const (
	Empty Square = iota
	P1Man
	P2Man
	P1King
	P2King
)

// Owner returns the player owning the piece, or NoPlayer for an empty square.
func (s Square) Owner() Player {
	switch s {
	case P1Man, P1King:
		return P1
	case P2Man, P2King:
		return P2
	default:
		return NoPlayer
	}
}

// IsKing reports whether the square holds a king.
func (s Square) IsKing() bool {
	return s == P1King || s == P2King
}

// Crowned returns the king of the same owner.
func (s Square) Crowned() Square {
	switch s {
	case P1Man:
		return P1King
	case P2Man:
		return P2King
	default:
		return s
	}
}

func (s Square) rune() rune {
	switch s {
	case P1Man:
		return 'r'
	case P2Man:
		return 'b'
	case P1King:
		return 'R'
	case P2King:
		return 'B'
	default:
		return '.'
	}
}

// Coord addresses a square by row and column.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// InBounds reports whether c lies on the board.
func (c Coord) InBounds() bool {
	return c.Row >= 0 && c.Row < Size && c.Col >= 0 && c.Col < Size
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Board is an 8x8 grid. Row 0 is P2's home edge and row 7 is P1's.
// It is a value type: Apply returns a modified copy.
type Board [Size][Size]Square

// NewBoard returns the standard 24-piece opening layout.
func NewBoard() Board {
	var b Board
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if (r+c)%2 == 0 {
				continue
			}
			switch {
			case r < 3:
				b[r][c] = P2Man
			case r > 4:
				b[r][c] = P1Man
			}
		}
	}
	return b
}

// At returns the square at c. Off-board coordinates read as Empty.
func (b Board) At(c Coord) Square {
	if !c.InBounds() {
		return Empty
	}
	return b[c.Row][c.Col]
}

// Apply performs a move and returns the resulting board. A jump removes the
// piece at the midpoint; a man reaching the far row is crowned.
func (b Board) Apply(m Move) Board {
	piece := b[m.From.Row][m.From.Col]
	b[m.From.Row][m.From.Col] = Empty
	b[m.To.Row][m.To.Col] = piece
	if m.IsJump() {
		mid := m.Captured()
		b[mid.Row][mid.Col] = Empty
	}
	if m.To.Row == promotionRow(piece) {
		b[m.To.Row][m.To.Col] = piece.Crowned()
	}
	return b
}

// String renders the board one row per line, useful in logs and tests.
func (b Board) String() string {
	var sb strings.Builder
	for r := range b {
		for c := range b[r] {
			sb.WriteRune(b[r][c].rune())
		}
		if r < Size-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// ParseBoard reads the String form back. Unknown runes are an error.
func ParseBoard(s string) (Board, error) {
	var b Board
	rows := strings.Split(strings.TrimSpace(s), "\n")
	if len(rows) != Size {
		return b, fmt.Errorf("board has %d rows, want %d", len(rows), Size)
	}
	for r, line := range rows {
		line = strings.TrimSpace(line)
		if len(line) != Size {
			return b, fmt.Errorf("row %d has %d squares, want %d", r, len(line), Size)
		}
		for c, ch := range line {
			switch ch {
			case '.':
				b[r][c] = Empty
			case 'r':
				b[r][c] = P1Man
			case 'b':
				b[r][c] = P2Man
			case 'R':
				b[r][c] = P1King
			case 'B':
				b[r][c] = P2King
			default:
				return b, fmt.Errorf("row %d: unknown square %q", r, ch)
			}
		}
	}
	return b, nil
}

// promotionRow is the row on which a man of the given kind is crowned.
// Kings and empty squares never promote.
func promotionRow(s Square) int {
	switch s {
	case P1Man:
		return 0
	case P2Man:
		return Size - 1
	default:
		return -1
	}
}
