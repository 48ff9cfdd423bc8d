package transport

import (
	"context"
	"encoding/json"
	"sync"

	"tinycheckers/internal/game"
)

// Memory is an in-process Transport. Every subscriber of a game, the
// publisher included, receives each message in publish order. Messages are
// round-tripped through JSON so tests see what a network peer would.
type Memory struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan game.Message
	nextID int

	// Partial controls CarriesContinuation.
	Partial bool
	// Fail, when set, is returned by Publish.
	Fail error
}

// NewMemory creates an empty in-memory transport.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string]map[int]chan game.Message)}
}

// Publish implements game.Transport.
func (m *Memory) Publish(ctx context.Context, gameID string, msg game.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	for _, ch := range m.subs[gameID] {
		var copied game.Message
		if err := json.Unmarshal(data, &copied); err != nil {
			return err
		}
		select {
		case ch <- copied:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe implements game.Transport.
func (m *Memory) Subscribe(ctx context.Context, gameID string, handle func(game.Message)) error {
	ch := make(chan game.Message, 64)
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	if m.subs[gameID] == nil {
		m.subs[gameID] = make(map[int]chan game.Message)
	}
	m.subs[gameID][id] = ch
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.subs[gameID], id)
		m.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-ch:
			handle(msg)
		}
	}
}

// CarriesContinuation implements game.Transport.
func (m *Memory) CarriesContinuation() bool { return m.Partial }

// Subscribers returns the number of live subscriptions to gameID.
func (m *Memory) Subscribers(gameID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[gameID])
}
