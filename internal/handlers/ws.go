package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tinycheckers/internal/checkers"
	"tinycheckers/internal/logging"
)

const wsIdlePingInterval = 30 * time.Second

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// wsMessage is an inbound frame: {"type": "click"|"chat"|"request_state", "payload": ...}.
type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var pingFrame = []byte(`{"kind":"ping"}`)

// HandleWS streams views over a WebSocket and accepts clicks and chat lines
// on the same connection.
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debugf("ws upgrade: %v", err)
		return
	}
	hub := h.Session.Hub
	send := make(chan []byte, 16)
	done := make(chan struct{})

	initial, _ := json.Marshal(h.Session.View())
	send <- initial
	hub.AddWatcher(send)
	defer func() {
		hub.RemoveWatcher(send)
		close(done)
	}()

	go func() {
		defer conn.Close()
		if err := writeWSWithHeartbeat(conn, send, done); err != nil {
			logging.Debugf("ws write: %v", err)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "click":
			var at checkers.Coord
			if err := json.Unmarshal(msg.Payload, &at); err != nil {
				continue
			}
			h.wsResult(send, h.Session.Click(r.Context(), at))
		case "chat":
			var req chatRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				continue
			}
			h.wsResult(send, h.Session.Chat(r.Context(), req.Text))
		case "request_state":
			h.wsResult(send, nil)
		}
	}
}

// wsResult queues an error frame, or the current view when err is nil.
func (h *Handler) wsResult(send chan<- []byte, err error) {
	var frame []byte
	if err != nil {
		frame, _ = json.Marshal(map[string]string{"kind": "error", "error": err.Error()})
	} else {
		frame, _ = json.Marshal(h.Session.View())
	}
	select {
	case send <- frame:
	default:
	}
}

// writeWSWithHeartbeat drains send onto conn until done is closed, pinging
// when the connection has been idle for wsIdlePingInterval.
func writeWSWithHeartbeat(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) error {
	ticker := time.NewTicker(wsIdlePingInterval)
	defer ticker.Stop()
	lastWrite := time.Now()

	for {
		select {
		case <-done:
			return nil
		case msg := <-send:
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return err
			}
			lastWrite = time.Now()
		case <-ticker.C:
			if time.Since(lastWrite) < wsIdlePingInterval {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, pingFrame); err != nil {
				return err
			}
			lastWrite = time.Now()
		}
	}
}
