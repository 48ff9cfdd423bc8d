package transport

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tinycheckers/internal/checkers"
	"tinycheckers/internal/game"
)

func mustBoard(t *testing.T, s string) checkers.Board {
	t.Helper()
	b, err := checkers.ParseBoard(s)
	require.NoError(t, err)
	return b
}

func reachableStates(t *testing.T) map[string]game.State {
	midGame := mustBoard(t, `
.b.b.b.b
b.....b.
...B.b..
........
..r.r...
.R......
.r.r.r.r
r.r.r.r.`)
	pending := checkers.Coord{Row: 2, Col: 3}

	fresh := game.NewState("Alice")
	joined := fresh
	joined.Player2Name = "Bob"

	mid := joined
	mid.Board = midGame
	mid.CurrentPlayer = checkers.P2

	cont := mid
	cont.Pending = &pending

	over := joined
	over.Board = mustBoard(t, `
........
........
........
...R....
........
........
........
........`)
	over.CurrentPlayer = checkers.P2
	over.IsGameOver = true
	over.Winner = checkers.P1

	unicode := joined
	unicode.Player1Name = "Zoë ♛"
	unicode.Player2Name = strings.Repeat("x", 200)

	return map[string]game.State{
		"fresh":        fresh,
		"joined":       joined,
		"mid game":     mid,
		"continuation": cont,
		"game over":    over,
		"unicode":      unicode,
	}
}

func TestFragmentRoundTrip(t *testing.T) {
	for name, s := range reachableStates(t) {
		t.Run(name, func(t *testing.T) {
			token := EncodeFragment(s)
			require.NotContains(t, token, "#")
			require.NotContains(t, token, "/")
			require.NotContains(t, token, "=")

			got, err := DecodeFragment(token)
			require.NoError(t, err)
			require.True(t, got.Equal(s), "decoded %+v, want %+v", got, s)
		})
	}
}

func TestFragmentIsCompact(t *testing.T) {
	token := EncodeFragment(game.NewState("Alice"))
	// 1 version + 32 cells + names + player + flags, base64 expanded
	require.Less(t, len(token), 60)
}

func TestDecodeFragmentRejectsGarbage(t *testing.T) {
	valid := EncodeFragment(game.NewState("Alice"))
	raw, err := base64.RawURLEncoding.DecodeString(valid)
	require.NoError(t, err)

	mutate := func(f func([]byte) []byte) string {
		b := append([]byte(nil), raw...)
		return base64.RawURLEncoding.EncodeToString(f(b))
	}

	cases := map[string]string{
		"empty":         "",
		"not base64":    "!!!not-a-token***",
		"truncated":     valid[:len(valid)/2],
		"bad version":   mutate(func(b []byte) []byte { b[0] = 9; return b }),
		"bad square":    mutate(func(b []byte) []byte { b[1] = 0x77; return b }),
		"trailing data": mutate(func(b []byte) []byte { return append(b, 0) }),
		"no player":     mutate(func(b []byte) []byte { b[len(b)-2] = 0; return b }),
		"unknown flags": mutate(func(b []byte) []byte { b[len(b)-1] = 0x80; return b }),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeFragment(token)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrBadFragment), "got %v", err)
		})
	}

	_, err = DecodeFragment(cases["bad square"])
	require.ErrorIs(t, err, game.ErrBadState)
}

func TestLinkPublishNotifiesLocalSubscribers(t *testing.T) {
	l := NewLink("http://localhost:8080/")
	require.Empty(t, l.Link())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan game.Message, 4)
	go func() { _ = l.Subscribe(ctx, "", func(m game.Message) { got <- m }) }()
	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.subs) == 1
	}, time.Second, 5*time.Millisecond)

	s := game.NewState("Alice")
	require.NoError(t, l.Publish(ctx, "", game.StateMessage(s)))

	select {
	case m := <-got:
		require.Equal(t, game.KindState, m.Kind)
		require.True(t, m.State.Equal(s))
	default:
		t.Fatalf("publish did not notify the subscriber synchronously")
	}
	require.Equal(t, "http://localhost:8080/#"+EncodeFragment(s), l.Link())
	require.Equal(t, EncodeFragment(s), l.Token())
}

func TestLinkOpen(t *testing.T) {
	s := game.NewState("Alice")
	s.Player2Name = "Bob"

	l := NewLink("http://example.test/")
	got, err := l.Open("http://example.test/#" + EncodeFragment(s))
	require.NoError(t, err)
	require.True(t, got.Equal(s))
	require.Equal(t, EncodeFragment(s), l.Token())

	_, err = l.Open("#corrupted")
	require.ErrorIs(t, err, game.ErrNoGame)
	require.Equal(t, EncodeFragment(s), l.Token(), "failed open must keep the last good fragment")
}

func TestLinkCannotCarryChat(t *testing.T) {
	l := NewLink("")
	err := l.Publish(context.Background(), "", game.ChatMessage("Alice", "hi"))
	require.ErrorIs(t, err, game.ErrNotCarried)
	err = l.Publish(context.Background(), "", game.JoinMessage("Bob"))
	require.ErrorIs(t, err, game.ErrNotCarried)
	require.True(t, l.CarriesContinuation())
}
