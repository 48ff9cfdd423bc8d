package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"tinycheckers/internal/game"
	"tinycheckers/internal/logging"
)

const (
	// DefaultServer is the public ntfy instance.
	DefaultServer = "https://ntfy.sh"
	// DefaultTopicPrefix is prepended to game ids to form topic names.
	DefaultTopicPrefix = "checkers-game-"
	// DefaultRetryDelay is the fixed pause before resubscribing.
	DefaultRetryDelay = 3 * time.Second

	maxLine = 1 << 20
)

// ErrStreamClosed is reported when the server ends the event stream.
var ErrStreamClosed = errors.New("event stream closed")

// Event is one line of an ntfy JSON stream.
type Event struct {
	ID      string `json:"id"`
	Time    int64  `json:"time"`
	Event   string `json:"event"`
	Topic   string `json:"topic"`
	Message string `json:"message"`
}

// Messenger relays messages through a topic-based push service with an
// ntfy-compatible API.
type Messenger struct {
	Server      string
	TopicPrefix string
	RetryDelay  time.Duration
	Client      *http.Client

	// OnError, if set, is told about transport failures before each retry.
	OnError func(gameID string, err error)
	// OnConnect, if set, is called each time a stream is established.
	OnConnect func(gameID string)
}

// NewMessenger returns a messenger for server with default settings.
func NewMessenger(server string) *Messenger {
	if server == "" {
		server = DefaultServer
	}
	return &Messenger{
		Server:      strings.TrimRight(server, "/"),
		TopicPrefix: DefaultTopicPrefix,
		RetryDelay:  DefaultRetryDelay,
		Client:      &http.Client{},
	}
}

// Topic returns the topic name of a game.
func (m *Messenger) Topic(gameID string) string {
	return m.TopicPrefix + gameID
}

// Publish posts msg to the game's topic.
func (m *Messenger) Publish(ctx context.Context, gameID string, msg game.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Kind, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Server+"/"+m.Topic(gameID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp, err := m.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("publish to %s: %s", m.Topic(gameID), resp.Status)
	}
	return nil
}

// Subscribe streams the game's topic and hands every decoded message to
// handle. After a failure it waits RetryDelay and reconnects; it returns
// only once ctx is cancelled.
func (m *Messenger) Subscribe(ctx context.Context, gameID string, handle func(game.Message)) error {
	for {
		err := m.stream(ctx, gameID, handle)
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("connection error on %s, retrying in %s: %v", m.Topic(gameID), m.RetryDelay, err)
		if m.OnError != nil {
			m.OnError(gameID, err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(m.RetryDelay):
		}
	}
}

// CarriesContinuation implements game.Transport. Mid-jump snapshots are not
// sent over the messenger; the opponent sees the finished turn.
func (m *Messenger) CarriesContinuation() bool { return false }

func (m *Messenger) stream(ctx context.Context, gameID string, handle func(game.Message)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.Server+"/"+m.Topic(gameID)+"/json", nil)
	if err != nil {
		return err
	}
	resp, err := m.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("subscribe to %s: %s", m.Topic(gameID), resp.Status)
	}
	logging.Debugf("subscribed to %s", m.Topic(gameID))
	if m.OnConnect != nil {
		m.OnConnect(gameID)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		msg, ok, err := DecodeEvent(line)
		if err != nil {
			log.Printf("Error parsing message chunk: %v", err)
			continue
		}
		if ok {
			handle(msg)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return ErrStreamClosed
}

// DecodeEvent parses one stream line. ok is false for events that carry no
// message, such as "open" and "keepalive".
func DecodeEvent(line []byte) (msg game.Message, ok bool, err error) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return msg, false, fmt.Errorf("event envelope: %w", err)
	}
	if ev.Event != "message" {
		return msg, false, nil
	}
	if err := json.Unmarshal([]byte(ev.Message), &msg); err != nil {
		return msg, false, fmt.Errorf("message body: %w", err)
	}
	return msg, true, nil
}
