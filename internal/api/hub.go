package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// streamMessage is the envelope written to websocket subscribers.
type streamMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub fans broadcast messages out to websocket subscribers. Each subscriber
// owns a buffered send queue; one that stops draining is dropped rather than
// stalling the rest.
type Hub struct {
	clients    map[*streamClient]bool
	broadcast  chan []byte
	register   chan *streamClient
	unregister chan *streamClient
	count      atomic.Int32
}

type streamClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*streamClient]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *streamClient),
		unregister: make(chan *streamClient),
	}
}

// Run owns the subscriber set. It loops until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.count.Store(int32(len(h.clients)))
			slog.Debug("stream subscriber joined", "subscribers", len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.count.Store(int32(len(h.clients)))
				slog.Debug("stream subscriber left", "subscribers", len(h.clients))
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Queue full: the subscriber stopped reading.
					delete(h.clients, c)
					close(c.send)
					h.count.Store(int32(len(h.clients)))
					slog.Warn("stream subscriber dropped, send queue full")
				}
			}
		}
	}
}

// Send marshals one message and hands it to the broadcast loop.
func (h *Hub) Send(msg streamMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		slog.Error("stream encode failed", "error", err)
		return
	}
	h.broadcast <- body
}

// Subscribers reports the current subscriber count.
func (h *Hub) Subscribers() int {
	return int(h.count.Load())
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// serveStream upgrades the request and subscribes the connection to the hub.
func serveStream(h *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &streamClient{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// readPump discards inbound frames. The stream is one-way; reading only
// detects the peer closing.
func (c *streamClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *streamClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	// The hub closed the queue; tell the peer before hanging up.
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
