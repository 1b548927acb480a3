// Package websocket implements the broadcast hub attached to the REST
// server when websockets are enabled. The hub tracks connected clients and
// fans one message out to every client whose connection is open.
package websocket

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ReadyState is the lifecycle state of a client connection.
type ReadyState int

const (
	Connecting ReadyState = iota
	Open
	Closing
	Closed
)

// String returns the state name.
func (s ReadyState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the subset of *websocket.Conn the hub writes to. It is an
// interface so hub behavior can be tested without real sockets.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one connection tracked by the hub.
type Client struct {
	id   string
	conn Conn

	mu    sync.Mutex
	state ReadyState

	// writeMu serializes writes; the connection allows one writer at a
	// time and the hub can be broadcast to from multiple goroutines.
	writeMu sync.Mutex
}

// ID returns the client id assigned at attach time.
func (c *Client) ID() string { return c.id }

// State returns the client's current ready state.
func (c *Client) State() ReadyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState moves the client to the given state.
func (c *Client) SetState(s ReadyState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// send writes a single text message. Only called for open clients.
func (c *Client) send(message []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// Hub is a broadcast-capable socket server. Connect and disconnect mutate
// the client set from the HTTP upgrade path; Broadcast only reads it.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a new broadcast hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger.Named("websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[string]*Client),
	}
}

// Attach registers a connection with the hub in the Connecting state and
// returns its client record.
func (h *Hub) Attach(conn Conn) *Client {
	client := &Client{
		id:    uuid.NewString(),
		conn:  conn,
		state: Connecting,
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()

	return client
}

// Detach removes a client from the hub and marks it closed.
func (h *Hub) Detach(client *Client) {
	h.mu.Lock()
	delete(h.clients, client.id)
	h.mu.Unlock()

	client.SetState(Closed)
}

// Clients returns a snapshot of the currently attached clients.
func (h *Hub) Clients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

// Broadcast sends message to every client whose connection is open. Clients
// in any other state are skipped. Each open client receives the message
// exactly once per call.
func (h *Hub) Broadcast(message []byte) {
	for _, client := range h.Clients() {
		if client.State() != Open {
			continue
		}
		if err := client.send(message); err != nil {
			h.logger.Warn("Broadcast write failed",
				zap.String("client_id", client.ID()),
				zap.Error(err))
		}
	}
}

// HandleConnection upgrades an HTTP request to a WebSocket connection and
// services it until the peer disconnects.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := h.Attach(conn)
	client.SetState(Open)
	h.logger.Info("WebSocket client connected", zap.String("client_id", client.ID()))

	go h.readLoop(conn, client)
}

// readLoop drains inbound frames so close/ping control messages are
// processed. The hub is broadcast-only; client payloads are discarded.
func (h *Hub) readLoop(conn *websocket.Conn, client *Client) {
	defer func() {
		h.Detach(client)
		conn.Close()
		h.logger.Info("WebSocket client disconnected", zap.String("client_id", client.ID()))
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

// Close closes every client connection and empties the client set.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, client := range clients {
		client.SetState(Closing)
		_ = client.conn.Close()
		client.SetState(Closed)
	}
}
