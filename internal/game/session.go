package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"tinycheckers/internal/checkers"
	"tinycheckers/internal/logging"
)

var (
	// ErrNoGame means there is no game loaded, either because none was
	// started or because a shared link could not be decoded.
	ErrNoGame = errors.New("no game loaded")
	// ErrNotYourTurn is returned for clicks made while the opponent moves.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrNameRequired is returned when a player name is blank.
	ErrNameRequired = errors.New("player name required")
	// ErrNotCarried is returned by transports that cannot express a message
	// kind, e.g. chat over a link.
	ErrNotCarried = errors.New("message not supported by transport")
)

const (
	statusSendFailed = "Connection error! Can't send move."
	statusJoining    = "Joining game..."

	// DefaultJoinRetry is how often a join is re-announced until the first
	// snapshot arrives.
	DefaultJoinRetry = 2 * time.Second

	maxNameRunes = 64
	maxEchoes    = 16
)

// Opener is implemented by transports that receive state out-of-band as a
// shareable token.
type Opener interface {
	Open(token string) (State, error)
}

// Linker is implemented by transports that can express the current state as
// a link.
type Linker interface {
	Link() string
}

// Session owns the single authoritative game state of this instance.
// Local clicks and inbound deliveries are the only writers. Views are
// broadcast while Mu is held so watchers see them in mutation order; Hub.Mu
// is only ever taken after Mu.
type Session struct {
	Mu  sync.Mutex
	Hub *Hub

	JoinRetry time.Duration

	// pubMu orders outbound publishes. It is taken before Mu and never
	// while Mu is held.
	pubMu     sync.Mutex
	transport Transport

	gameID string
	role   checkers.Player
	turn   *Turn
	chat   []ChatPayload
	sent   map[string]struct{}
	status string
	// echoes holds snapshots published by this session whose echo has not
	// come back yet, oldest first.
	echoes []State

	epoch int
	// live is the subscription context of the current epoch. Publishes
	// started in that epoch are abandoned when it ends.
	live   context.Context
	cancel context.CancelFunc
}

// NewSession creates an empty session on top of t.
func NewSession(t Transport) *Session {
	return &Session{
		Hub:       NewHub(),
		JoinRetry: DefaultJoinRetry,
		transport: t,
		sent:      make(map[string]struct{}),
	}
}

// cleanName trims a player name and caps its length.
func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = strings.TrimSpace(string([]rune(name)[:maxNameRunes]))
	}
	return name
}

// Create starts a new game with the local player in the first seat. The
// fresh snapshot is published at once so a link-based opponent has
// something to open.
func (s *Session) Create(ctx context.Context, name string) error {
	name = cleanName(name)
	if name == "" {
		return ErrNameRequired
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.Mu.Lock()
	s.resetLocked()
	s.gameID = uuid.NewString()
	s.role = checkers.P1
	t := Start(name)
	s.turn = &t
	s.subscribeLocked()
	gameID, epoch, st := s.gameID, s.epoch, t.State
	s.expectEchoLocked(st)
	s.Hub.Broadcast(s.viewLocked())
	s.Mu.Unlock()

	logging.Debugf("created game %s for %s", gameID, name)
	return s.publishLocked(ctx, epoch, gameID, StateMessage(st))
}

// Join subscribes to an existing game and announces the local player, who
// takes the second seat once the initiator answers with a snapshot. The
// announcement is repeated every JoinRetry until that snapshot arrives.
func (s *Session) Join(ctx context.Context, gameID, name string) error {
	name = cleanName(name)
	gameID = strings.TrimSpace(gameID)
	if name == "" {
		return ErrNameRequired
	}
	if gameID == "" {
		return ErrNoGame
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.Mu.Lock()
	s.resetLocked()
	s.gameID = gameID
	s.role = checkers.P2
	s.status = statusJoining
	s.subscribeLocked()
	epoch := s.epoch
	s.Hub.Broadcast(s.viewLocked())
	s.Mu.Unlock()

	logging.Debugf("joining game %s as %s", gameID, name)
	if err := s.publishLocked(ctx, epoch, gameID, JoinMessage(name)); err != nil {
		return err
	}
	if s.JoinRetry > 0 {
		go s.announce(epoch, gameID, name)
	}
	return nil
}

// announce re-publishes a join until a snapshot is loaded or the session
// moves on.
func (s *Session) announce(epoch int, gameID, name string) {
	ticker := time.NewTicker(s.JoinRetry)
	defer ticker.Stop()
	for range ticker.C {
		s.Mu.Lock()
		done := epoch != s.epoch || s.turn != nil
		live := s.live
		s.Mu.Unlock()
		if done {
			return
		}
		s.pubMu.Lock()
		err := s.transport.Publish(live, gameID, JoinMessage(name))
		s.pubMu.Unlock()
		if err != nil {
			logging.Debugf("re-announce join to %s: %v", gameID, err)
		}
	}
}

// Open loads a game from a shared link token. A token that does not decode
// leaves the session empty and returns ErrNoGame. If the second seat is free
// and name is not the first player's, the local player takes it and the
// updated link is published.
func (s *Session) Open(ctx context.Context, token, name string) error {
	op, ok := s.transport.(Opener)
	if !ok {
		return fmt.Errorf("open link: %w", ErrNotCarried)
	}
	name = cleanName(name)

	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.Mu.Lock()
	s.resetLocked()
	s.subscribeLocked()
	s.Mu.Unlock()

	st, err := op.Open(token)
	if err != nil {
		s.Mu.Lock()
		s.resetLocked()
		s.Hub.Broadcast(s.viewLocked())
		s.Mu.Unlock()
		logging.Debugf("open link: %v", err)
		return ErrNoGame
	}

	s.Mu.Lock()
	claim := false
	switch {
	case name == "":
		s.role = checkers.NoPlayer
	case name == st.Player1Name:
		s.role = checkers.P1
	case name == st.Player2Name:
		s.role = checkers.P2
	case st.Player2Name == "":
		s.role = checkers.P2
		st.Player2Name = name
		claim = true
	default:
		s.role = checkers.NoPlayer
	}
	t := Resume(st)
	s.turn = &t
	if claim {
		s.expectEchoLocked(st)
	}
	epoch := s.epoch
	s.Hub.Broadcast(s.viewLocked())
	s.Mu.Unlock()

	if claim {
		return s.publishLocked(ctx, epoch, "", StateMessage(st))
	}
	return nil
}

// Click feeds a clicked square to the controller. Clicks that mean nothing
// are ignored without error.
func (s *Session) Click(ctx context.Context, at checkers.Coord) error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.Mu.Lock()
	if s.turn == nil {
		s.Mu.Unlock()
		return ErrNoGame
	}
	st := s.turn.State
	if st.IsGameOver {
		s.Mu.Unlock()
		return nil
	}
	if st.Player2Name == "" {
		s.Mu.Unlock()
		return ErrNotYourTurn
	}
	if s.role != checkers.NoPlayer && s.role != st.CurrentPlayer {
		s.Mu.Unlock()
		return ErrNotYourTurn
	}
	next, effects := s.turn.Click(at)
	s.turn = &next
	publish := false
	for _, e := range effects {
		switch e {
		case Render:
			s.Hub.Broadcast(s.viewLocked())
		case Publish:
			publish = true
		case PublishPartial:
			publish = publish || s.transport.CarriesContinuation()
		}
	}
	if publish {
		s.expectEchoLocked(next.State)
	}
	gameID, epoch := s.gameID, s.epoch
	s.Mu.Unlock()

	if !publish {
		return nil
	}
	logging.Debugf("publishing after click %v", at)
	return s.publishLocked(ctx, epoch, gameID, StateMessage(next.State))
}

// Chat sends a chat line and appends it to the local transcript.
func (s *Session) Chat(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.Mu.Lock()
	if s.turn == nil {
		s.Mu.Unlock()
		return ErrNoGame
	}
	sender := s.turn.State.Name(s.role)
	if sender == "" {
		sender = "Player 2"
	}
	msg := ChatMessage(sender, text)
	msg.Chat.ID = uuid.NewString()
	s.sent[msg.Chat.ID] = struct{}{}
	s.chat = append(s.chat, *msg.Chat)
	gameID, epoch := s.gameID, s.epoch
	s.Hub.Broadcast(s.viewLocked())
	s.Mu.Unlock()

	return s.publishLocked(ctx, epoch, gameID, msg)
}

// Reset abandons the current game, stops the subscription without a
// reconnect and returns to the empty pre-game state.
func (s *Session) Reset() {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.resetLocked()
	s.Hub.Broadcast(s.viewLocked())
}

// SetStatus updates the connectivity status shown to the user.
func (s *Session) SetStatus(status string) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.status = status
	s.Hub.Broadcast(s.viewLocked())
}

// ClearStatus clears the status if it still reads status.
func (s *Session) ClearStatus(status string) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.status != status {
		return
	}
	s.status = ""
	s.Hub.Broadcast(s.viewLocked())
}

// GameID returns the identifier of the current game, if any.
func (s *Session) GameID() string {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.gameID
}

// Turn returns a copy of the current controller state.
func (s *Session) Turn() (Turn, bool) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.turn == nil {
		return Turn{}, false
	}
	return *s.turn, true
}

// View returns the current view.
func (s *Session) View() View {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.viewLocked()
}

func (s *Session) receive(epoch int, m Message) {
	s.Mu.Lock()
	if epoch != s.epoch {
		s.Mu.Unlock()
		return
	}
	var republish *State
	switch m.Kind {
	case KindState:
		if s.ownEchoLocked(*m.State) {
			s.Mu.Unlock()
			return
		}
		t := Resume(*m.State)
		s.turn = &t
		s.status = ""
	case KindJoin:
		name := cleanName(m.Join.PlayerName)
		if s.role != checkers.P1 || s.turn == nil || name == "" {
			break
		}
		st := s.turn.State
		switch st.Player2Name {
		case "":
			st.Player2Name = name
			t := Resume(st)
			s.turn = &t
			republish = &st
			logging.Debugf("%s joined game %s", name, s.gameID)
		case name:
			// repeated announcement from a joiner that missed the snapshot
			if st.Pending == nil || s.transport.CarriesContinuation() {
				republish = &st
			}
		}
		if republish != nil {
			s.expectEchoLocked(*republish)
		}
	case KindChat:
		if _, mine := s.sent[m.Chat.ID]; mine && m.Chat.ID != "" {
			s.Mu.Unlock()
			return
		}
		s.chat = append(s.chat, *m.Chat)
	}
	gameID := s.gameID
	s.Hub.Broadcast(s.viewLocked())
	s.Mu.Unlock()

	if republish != nil {
		s.pubMu.Lock()
		defer s.pubMu.Unlock()
		if err := s.publishLocked(context.Background(), epoch, gameID, StateMessage(*republish)); err != nil {
			log.Printf("re-publish after join: %v", err)
		}
	}
}

// publishLocked sends msg on behalf of epoch; pubMu must be held. A failure
// is reported through the status but local state is kept. Once the session
// has moved past epoch the publish is cancelled and its outcome dropped.
func (s *Session) publishLocked(ctx context.Context, epoch int, gameID string, msg Message) error {
	s.Mu.Lock()
	if epoch != s.epoch {
		s.Mu.Unlock()
		return nil
	}
	live := s.live
	s.Mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if live != nil {
		stop := context.AfterFunc(live, cancel)
		defer stop()
	}

	err := s.transport.Publish(ctx, gameID, msg)
	if err == nil {
		return nil
	}
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if epoch != s.epoch {
		logging.Debugf("publish %s to %q abandoned: %v", msg.Kind, gameID, err)
		return nil
	}
	log.Printf("publish %s to %q: %v", msg.Kind, gameID, err)
	if errors.Is(err, ErrNotCarried) {
		return err
	}
	s.status = statusSendFailed
	s.Hub.Broadcast(s.viewLocked())
	return fmt.Errorf("could not send: %w", err)
}

func (s *Session) subscribeLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	s.live, s.cancel = ctx, cancel
	epoch := s.epoch
	gameID := s.gameID
	go func() {
		err := s.transport.Subscribe(ctx, gameID, func(m Message) { s.receive(epoch, m) })
		if err != nil && ctx.Err() == nil {
			log.Printf("subscription to %q ended: %v", gameID, err)
		}
	}()
}

func (s *Session) resetLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.live = nil
	s.epoch++
	s.gameID = ""
	s.role = checkers.NoPlayer
	s.turn = nil
	s.chat = nil
	s.sent = make(map[string]struct{})
	s.status = ""
	s.echoes = nil
}

func (s *Session) expectEchoLocked(st State) {
	s.echoes = append(s.echoes, st)
	if n := len(s.echoes); n > maxEchoes {
		s.echoes = s.echoes[n-maxEchoes:]
	}
}

// ownEchoLocked reports whether st is a snapshot this session published and
// drops it, along with any older ones whose echo was lost.
func (s *Session) ownEchoLocked(st State) bool {
	for i, e := range s.echoes {
		if e.Equal(st) {
			s.echoes = s.echoes[i+1:]
			return true
		}
	}
	return false
}

func (s *Session) viewLocked() View {
	v := View{Kind: "state", Role: s.role, GameID: s.gameID, Status: s.status, Phase: "lobby"}
	v.Chat = append([]ChatPayload{}, s.chat...)
	if s.turn == nil {
		return v
	}
	st := s.turn.State
	v.Loaded = true
	v.State = &st
	v.Phase = s.turn.Phase.Name()
	if from, moves, ok := s.turn.Selection(); ok {
		v.Selected = &from
		for _, m := range moves {
			v.Targets = append(v.Targets, m.To)
		}
	}
	if l, ok := s.transport.(Linker); ok {
		v.Link = l.Link()
	}
	return v
}
