// Package api exposes the read-only observer surface over HTTP: the current
// session frame, the scoreboard, the event log, a health probe, and a
// websocket stream of new events. Handlers only read published copies and
// the database; every mutation stays with the tick loop.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/talgya/courier-world/internal/engine"
	"github.com/talgya/courier-world/internal/persistence"
)

// Server serves the observer API for one running session.
type Server struct {
	State *engine.Published
	DB    *persistence.DB
	Addr  string

	limiter *RateLimiter
	hub     *Hub
}

// NewServer wires the observer API against the published session state.
// ratePerMin caps requests per client IP across the JSON endpoints.
func NewServer(state *engine.Published, db *persistence.DB, addr string, ratePerMin int) *Server {
	return &Server{
		State:   state,
		DB:      db,
		Addr:    addr,
		limiter: NewRateLimiter(ratePerMin, time.Minute),
		hub:     NewHub(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/state", RateLimitMiddleware(s.limiter, s.handleState))
	mux.HandleFunc("/scores", RateLimitMiddleware(s.limiter, s.handleScores))
	mux.HandleFunc("/events", RateLimitMiddleware(s.limiter, s.handleEvents))
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ws", s.handleStream)
	return mux
}

// Start launches the stream hub and the HTTP listener in background
// goroutines. The server lives for the rest of the process.
func (s *Server) Start() {
	go s.hub.Run()
	slog.Info("observer API starting", "addr", s.Addr)
	go func() {
		if err := http.ListenAndServe(s.Addr, s.Handler()); err != nil {
			slog.Error("observer API stopped", "error", err)
		}
	}()
}

// Broadcast pushes freshly logged engine events to every stream subscriber.
func (s *Server) Broadcast(events []engine.Event) {
	for _, e := range events {
		s.hub.Send(streamMessage{Type: "event", Payload: e})
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.State.View())
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "scoreboard not available", http.StatusServiceUnavailable)
		return
	}
	scores, err := s.DB.TopScores(limitParam(r, 10, 100))
	if err != nil {
		slog.Error("scoreboard query failed", "error", err)
		http.Error(w, "scoreboard query failed", http.StatusInternalServerError)
		return
	}
	if scores == nil {
		scores = []engine.Score{}
	}
	writeJSON(w, scores)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	events := s.State.Events(limitParam(r, 50, 500))
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, events)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	v := s.State.View()
	writeJSON(w, map[string]any{
		"status":  "ok",
		"session": v.ID,
		"tick":    v.Tick,
		"outcome": v.Outcome,
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	serveStream(s.hub, w, r)
}

// limitParam reads the limit query parameter, clamped to (0, max].
func limitParam(r *http.Request, def, max int) int {
	l := r.URL.Query().Get("limit")
	if l == "" {
		return def
	}
	n, err := strconv.Atoi(l)
	if err != nil || n <= 0 || n > max {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
