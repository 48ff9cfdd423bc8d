package transport

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"tinycheckers/internal/checkers"
	"tinycheckers/internal/game"
)

const (
	fragmentVersion = 1
	cellBytes       = checkers.Size * checkers.Size / 2
	maxNameLen      = 256

	flagGameOver = 1 << 0
	flagPending  = 1 << 1
)

// ErrBadFragment is wrapped by every DecodeFragment failure.
var ErrBadFragment = errors.New("malformed game link")

var fragmentEncoding = base64.RawURLEncoding

// EncodeFragment packs s into a URL-safe token. The record is, in order: a
// version byte, the 64 cells two per byte, both names length-prefixed, the
// player to move, a flag byte and, when a jump is pending, its square.
// The winner is not stored: a finished game is always won by the player who
// is not to move.
func EncodeFragment(s game.State) string {
	buf := make([]byte, 0, 1+cellBytes+len(s.Player1Name)+len(s.Player2Name)+8)
	buf = append(buf, fragmentVersion)
	for i := 0; i < cellBytes; i++ {
		hi := s.Board[(2*i)/checkers.Size][(2*i)%checkers.Size]
		lo := s.Board[(2*i+1)/checkers.Size][(2*i+1)%checkers.Size]
		buf = append(buf, byte(hi)<<4|byte(lo))
	}
	buf = binary.AppendUvarint(buf, uint64(len(s.Player1Name)))
	buf = append(buf, s.Player1Name...)
	buf = binary.AppendUvarint(buf, uint64(len(s.Player2Name)))
	buf = append(buf, s.Player2Name...)
	buf = append(buf, byte(s.CurrentPlayer))

	var flags byte
	if s.IsGameOver {
		flags |= flagGameOver
	}
	if s.Pending != nil {
		flags |= flagPending
	}
	buf = append(buf, flags)
	if s.Pending != nil {
		buf = append(buf, byte(s.Pending.Row*checkers.Size+s.Pending.Col))
	}
	return fragmentEncoding.EncodeToString(buf)
}

// DecodeFragment is the inverse of EncodeFragment. Any structural problem
// yields an error wrapping ErrBadFragment.
func DecodeFragment(token string) (game.State, error) {
	var s game.State
	raw, err := fragmentEncoding.DecodeString(token)
	if err != nil {
		return s, fmt.Errorf("%w: %v", ErrBadFragment, err)
	}
	r := &reader{buf: raw}

	if v := r.next(); v != fragmentVersion {
		return s, fmt.Errorf("%w: version %d", ErrBadFragment, v)
	}
	for i := 0; i < cellBytes; i++ {
		b := r.next()
		s.Board[(2*i)/checkers.Size][(2*i)%checkers.Size] = checkers.Square(b >> 4)
		s.Board[(2*i+1)/checkers.Size][(2*i+1)%checkers.Size] = checkers.Square(b & 0x0f)
	}
	s.Player1Name = r.name()
	s.Player2Name = r.name()
	s.CurrentPlayer = checkers.Player(r.next())
	flags := r.next()
	if flags&flagPending != 0 {
		sq := int(r.next())
		s.Pending = &checkers.Coord{Row: sq / checkers.Size, Col: sq % checkers.Size}
	}
	if r.err != nil {
		return game.State{}, fmt.Errorf("%w: %v", ErrBadFragment, r.err)
	}
	if r.off != len(raw) {
		return game.State{}, fmt.Errorf("%w: %d trailing bytes", ErrBadFragment, len(raw)-r.off)
	}

	if flags&^(flagGameOver|flagPending) != 0 {
		return game.State{}, fmt.Errorf("%w: unknown flags %#x", ErrBadFragment, flags)
	}
	if flags&flagGameOver != 0 {
		s.IsGameOver = true
		s.Winner = s.CurrentPlayer.Opponent()
	}
	if err := s.Validate(); err != nil {
		return game.State{}, fmt.Errorf("%w: %w", ErrBadFragment, err)
	}
	return s, nil
}

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) next() byte {
	if r.err != nil {
		return 0
	}
	if r.off >= len(r.buf) {
		r.err = errors.New("truncated")
		return 0
	}
	b := r.buf[r.off]
	r.off++
	return b
}

func (r *reader) name() string {
	if r.err != nil {
		return ""
	}
	n, w := binary.Uvarint(r.buf[r.off:])
	if w <= 0 {
		r.err = errors.New("bad name length")
		return ""
	}
	r.off += w
	if n > maxNameLen || int(n) > len(r.buf)-r.off {
		r.err = fmt.Errorf("name length %d out of range", n)
		return ""
	}
	s := string(r.buf[r.off : r.off+int(n)])
	r.off += int(n)
	if !utf8.ValidString(s) {
		r.err = errors.New("name is not UTF-8")
		return ""
	}
	return s
}
