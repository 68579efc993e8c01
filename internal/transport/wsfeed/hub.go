// Package wsfeed is an optional outbound-only broadcaster for the
// engine's Tick and Transaction records, for the "sink" collaborator
// role the core engine is deliberately ignorant of. It never reads
// from its clients: the matching engine has no network surface, this
// only republishes what it already computed.
package wsfeed

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/lobengine/internal/lob"
)

// Hub fans out broadcast messages to every currently-registered
// client, dropping a client's message rather than blocking the engine
// if its send buffer is full.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	logger     *zap.Logger
	mu         sync.RWMutex
}

// Client wraps one outbound websocket connection.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
}

// NewHub constructs a Hub; call Run in its own goroutine to start it.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// NewClient wraps conn for registration with a Hub. id is used only
// for log correlation.
func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{ID: id, conn: conn, send: make(chan []byte, 32)}
}

// Run processes register/unregister/broadcast events until stop is
// closed.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("wsfeed client registered", zap.String("client_id", c.ID))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("wsfeed client unregistered", zap.String("client_id", c.ID))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.logger.Warn("wsfeed client send buffer full, dropping", zap.String("client_id", c.ID))
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the broadcast set.
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister removes a client from the broadcast set.
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// BroadcastJSON marshals v and enqueues it for every registered
// client. A marshal error is returned; send-buffer overflows are only
// logged, never surfaced, since a slow subscriber must never block
// the engine that calls this.
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.broadcast <- data
	return nil
}

// wireMessage is the envelope broadcast to every subscriber, tagging
// the payload so a client can tell a trade from a tick without
// inspecting its shape.
type wireMessage struct {
	Kind string      `json:"kind"`
	Data interface{} `json:"data"`
}

// OnTransaction implements feed.TransactionSink, broadcasting tx to
// every registered client.
func (h *Hub) OnTransaction(tx lob.Transaction) {
	if err := h.BroadcastJSON(wireMessage{Kind: "transaction", Data: tx}); err != nil {
		h.logger.Error("wsfeed marshal transaction failed", zap.Error(err))
	}
}

// OnTick implements feed.TickSink, broadcasting tk to every registered
// client.
func (h *Hub) OnTick(tk lob.Tick) {
	if err := h.BroadcastJSON(wireMessage{Kind: "tick", Data: tk}); err != nil {
		h.logger.Error("wsfeed marshal tick failed", zap.Error(err))
	}
}

// WritePump drains a client's send channel onto its websocket
// connection until the channel is closed. Run it in its own goroutine
// per registered client.
func (c *Client) WritePump() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
