package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinycheckers/internal/game"
)

// Link carries the game inside a URL fragment. Publishing replaces the
// current fragment and notifies local subscribers straight away; the
// opponent receives the state by opening the shared link.
type Link struct {
	Base string

	mu     sync.Mutex
	token  string
	subs   map[int]func(game.Message)
	nextID int
}

// NewLink returns a link transport whose links point at base.
func NewLink(base string) *Link {
	return &Link{Base: base, subs: make(map[int]func(game.Message))}
}

// Publish implements game.Transport. Only snapshots fit in a link.
func (l *Link) Publish(ctx context.Context, gameID string, msg game.Message) error {
	if msg.Kind != game.KindState || msg.State == nil {
		return fmt.Errorf("%s over link: %w", msg.Kind, game.ErrNotCarried)
	}
	token := EncodeFragment(*msg.State)
	l.deliver(token, *msg.State)
	return nil
}

// Subscribe implements game.Transport.
func (l *Link) Subscribe(ctx context.Context, gameID string, handle func(game.Message)) error {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = handle
	l.mu.Unlock()

	<-ctx.Done()

	l.mu.Lock()
	delete(l.subs, id)
	l.mu.Unlock()
	return nil
}

// CarriesContinuation implements game.Transport. The fragment records the
// piece owing a jump, so intermediate states survive a reload.
func (l *Link) CarriesContinuation() bool { return true }

// Open decodes a token received out-of-band, either bare or as a full link.
// A token that does not decode leaves the current fragment untouched and
// returns an error wrapping game.ErrNoGame.
func (l *Link) Open(token string) (game.State, error) {
	if i := strings.IndexByte(token, '#'); i >= 0 {
		token = token[i+1:]
	}
	token = strings.TrimSpace(token)
	st, err := DecodeFragment(token)
	if err != nil {
		return game.State{}, fmt.Errorf("%w: %v", game.ErrNoGame, err)
	}
	l.deliver(token, st)
	return st, nil
}

// Token returns the current fragment without the leading '#'.
func (l *Link) Token() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.token
}

// Link returns the shareable URL of the current state, or "" before any
// state was published or opened.
func (l *Link) Link() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token == "" {
		return ""
	}
	return l.Base + "#" + l.token
}

func (l *Link) deliver(token string, st game.State) {
	l.mu.Lock()
	l.token = token
	handlers := make([]func(game.Message), 0, len(l.subs))
	for _, h := range l.subs {
		handlers = append(handlers, h)
	}
	l.mu.Unlock()

	for _, h := range handlers {
		h(game.StateMessage(st))
	}
}
