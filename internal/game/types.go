package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tinycheckers/internal/checkers"
)

// State is the canonical snapshot both participants exchange. A received
// State replaces the local one wholesale.
type State struct {
	Board         checkers.Board  `json:"board"`
	CurrentPlayer checkers.Player `json:"currentPlayer"`
	Player1Name   string          `json:"player1Name"`
	Player2Name   string          `json:"player2Name,omitempty"`
	IsGameOver    bool            `json:"isGameOver"`
	Winner        checkers.Player `json:"winner,omitempty"`
	Pending       *checkers.Coord `json:"pending,omitempty"`
}

// ErrBadState is wrapped by every Validate failure.
var ErrBadState = errors.New("invalid game state")

// NewState returns a fresh game started by player1.
func NewState(player1 string) State {
	return State{
		Board:         checkers.NewBoard(),
		CurrentPlayer: checkers.P1,
		Player1Name:   player1,
	}
}

// Name returns the display name of p, or "" if the seat is empty.
func (s State) Name(p checkers.Player) string {
	switch p {
	case checkers.P1:
		return s.Player1Name
	case checkers.P2:
		return s.Player2Name
	default:
		return ""
	}
}

// Equal compares two snapshots field by field.
func (s State) Equal(o State) bool {
	if s.Board != o.Board || s.CurrentPlayer != o.CurrentPlayer ||
		s.Player1Name != o.Player1Name || s.Player2Name != o.Player2Name ||
		s.IsGameOver != o.IsGameOver || s.Winner != o.Winner {
		return false
	}
	if (s.Pending == nil) != (o.Pending == nil) {
		return false
	}
	return s.Pending == nil || *s.Pending == *o.Pending
}

// Validate checks that s is a position this program could have produced.
// Snapshots from the network and from links pass through it before they
// replace local state.
func (s State) Validate() error {
	for r := range s.Board {
		for c, sq := range s.Board[r] {
			if sq > checkers.P2King {
				return fmt.Errorf("%w: bad square code %d at (%d,%d)", ErrBadState, sq, r, c)
			}
		}
	}
	switch {
	case s.CurrentPlayer != checkers.P1 && s.CurrentPlayer != checkers.P2:
		return fmt.Errorf("%w: no player to move", ErrBadState)
	case s.Player1Name == "":
		return fmt.Errorf("%w: missing first player", ErrBadState)
	case s.IsGameOver && s.Winner != checkers.P1 && s.Winner != checkers.P2:
		return fmt.Errorf("%w: finished game without a winner", ErrBadState)
	case !s.IsGameOver && s.Winner != checkers.NoPlayer:
		return fmt.Errorf("%w: winner of a game in progress", ErrBadState)
	case s.Pending != nil && !s.Pending.InBounds():
		return fmt.Errorf("%w: pending square off the board", ErrBadState)
	case s.Pending != nil && s.IsGameOver:
		return fmt.Errorf("%w: pending jump in a finished game", ErrBadState)
	}
	return nil
}

// Kind tags a Message on the wire.
type Kind string

const (
	KindState Kind = "game_state"
	KindJoin  Kind = "player_join"
	KindChat  Kind = "chat_message"
)

// JoinPayload announces the second player.
type JoinPayload struct {
	PlayerName string `json:"playerName"`
}

// ChatPayload is one chat line.
type ChatPayload struct {
	ID         string `json:"id,omitempty"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
}

// Message is the unit exchanged over a Transport. Exactly one payload field
// is set, matching Kind.
type Message struct {
	Kind  Kind
	State *State
	Join  *JoinPayload
	Chat  *ChatPayload
}

// StateMessage wraps a snapshot.
func StateMessage(s State) Message { return Message{Kind: KindState, State: &s} }

// JoinMessage wraps a join announcement.
func JoinMessage(name string) Message {
	return Message{Kind: KindJoin, Join: &JoinPayload{PlayerName: name}}
}

// ChatMessage wraps a chat line.
func ChatMessage(sender, text string) Message {
	return Message{Kind: KindChat, Chat: &ChatPayload{SenderName: sender, Text: text}}
}

type wireMessage struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalJSON encodes the message as {"type": ..., "payload": ...}.
func (m Message) MarshalJSON() ([]byte, error) {
	var payload any
	switch m.Kind {
	case KindState:
		payload = m.State
	case KindJoin:
		payload = m.Join
	case KindChat:
		payload = m.Chat
	default:
		return nil, fmt.Errorf("unknown message type %q", m.Kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{Type: m.Kind, Payload: raw})
}

// UnmarshalJSON decodes a tagged message. Unknown tags, missing payloads and
// snapshots failing Validate are errors.
func (m *Message) UnmarshalJSON(b []byte) error {
	var w wireMessage
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if len(w.Payload) == 0 || string(w.Payload) == "null" {
		return fmt.Errorf("message %q has no payload", w.Type)
	}
	out := Message{Kind: w.Type}
	var target any
	switch w.Type {
	case KindState:
		out.State = &State{}
		target = out.State
	case KindJoin:
		out.Join = &JoinPayload{}
		target = out.Join
	case KindChat:
		out.Chat = &ChatPayload{}
		target = out.Chat
	default:
		return fmt.Errorf("unknown message type %q", w.Type)
	}
	if err := json.Unmarshal(w.Payload, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", w.Type, err)
	}
	if out.State != nil {
		if err := out.State.Validate(); err != nil {
			return err
		}
	}
	*m = out
	return nil
}

// Transport carries messages between the two participants of a game.
type Transport interface {
	// Publish sends msg to the other participant. It is best effort.
	Publish(ctx context.Context, gameID string, msg Message) error
	// Subscribe delivers incoming messages to handle until ctx is cancelled.
	Subscribe(ctx context.Context, gameID string, handle func(Message)) error
	// CarriesContinuation reports whether snapshots taken in the middle of
	// a multi-jump are worth publishing.
	CarriesContinuation() bool
}

// View is what a local watcher receives: the snapshot plus local-only
// selection, role and transcript.
type View struct {
	Kind     string           `json:"kind"`
	Loaded   bool             `json:"loaded"`
	GameID   string           `json:"gameId,omitempty"`
	Link     string           `json:"link,omitempty"`
	Role     checkers.Player  `json:"role,omitempty"`
	Phase    string           `json:"phase"`
	Selected *checkers.Coord  `json:"selected,omitempty"`
	Targets  []checkers.Coord `json:"targets,omitempty"`
	State    *State           `json:"state,omitempty"`
	Status   string           `json:"status"`
	Chat     []ChatPayload    `json:"chat"`
}
