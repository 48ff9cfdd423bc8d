package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tinycheckers/internal/checkers"
	"tinycheckers/internal/game"
	"tinycheckers/internal/logging"
	"tinycheckers/internal/templates"
)

const sseHeartbeat = 15 * time.Second

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Session *game.Session
	// Transport names the synchronization strategy for the page.
	Transport string
}

// NewHandler creates a new handler instance
func NewHandler(s *game.Session, transport string) *Handler {
	return &Handler{Session: s, Transport: transport}
}

type createRequest struct {
	Name string `json:"name"`
}

type joinRequest struct {
	GameID string `json:"gameId"`
	Name   string `json:"name"`
}

type openRequest struct {
	Link string `json:"link"`
	Name string `json:"name"`
}

type chatRequest struct {
	Text string `json:"text"`
}

// Routes wires every endpoint onto a chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", h.HandlePage)
	r.Get("/sse", h.HandleSSE)
	r.Get("/ws", h.HandleWS)
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.HandleState)
		r.Post("/create", h.HandleCreate)
		r.Post("/join", h.HandleJoin)
		r.Post("/open", h.HandleOpen)
		r.Post("/click", h.HandleClick)
		r.Post("/chat", h.HandleChat)
		r.Post("/reset", h.HandleReset)
	})
	return r
}

// HandlePage serves the game page
func (h *Handler) HandlePage(w http.ResponseWriter, r *http.Request) {
	templates.WriteGameHTML(w, h.Transport)
}

// HandleState returns the current view
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	h.reply(w, nil)
}

// HandleCreate starts a new game with the local player as P1
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.reply(w, h.Session.Create(r.Context(), req.Name))
}

// HandleJoin joins an existing game by id
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.reply(w, h.Session.Join(r.Context(), req.GameID, req.Name))
}

// HandleOpen loads a game from a shared link
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.reply(w, h.Session.Open(r.Context(), req.Link, req.Name))
}

// HandleClick forwards a clicked square to the turn controller
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	var at checkers.Coord
	if !decodeJSON(w, r, &at) {
		return
	}
	h.reply(w, h.Session.Click(r.Context(), at))
}

// HandleChat sends a chat line
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.reply(w, h.Session.Chat(r.Context(), req.Text))
}

// HandleReset abandons the current game
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.Session.Reset()
	h.reply(w, nil)
}

// HandleSSE streams views as Server-Sent Events
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	hub := h.Session.Hub
	ch := make(chan []byte, 16)
	hub.AddWatcher(ch)
	defer hub.RemoveWatcher(ch)

	initial, _ := json.Marshal(h.Session.View())
	_, _ = fmt.Fprintf(w, "data: %s\n\n", initial)
	flusher.Flush()
	logging.Debugf("sse watcher connected, %d watching", hub.Len())

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// heartbeat
			_, _ = w.Write([]byte("data: {}\n\n"))
			flusher.Flush()
		case msg := <-ch:
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(msg)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

func (h *Handler) reply(w http.ResponseWriter, err error) {
	view := h.Session.View()
	if err != nil {
		logging.Debugf("request rejected: %v", err)
		WriteJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error(), "view": view})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "view": view})
}
