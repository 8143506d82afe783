package ws

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/library-min/TF-Planner-sub000/internal/models"
	"github.com/library-min/TF-Planner-sub000/internal/session"
)

var ErrConnNotFound = errors.New("connection not found")

// Conn wraps one websocket session. Writes are serialized per connection;
// gorilla connections do not allow concurrent writers.
type Conn struct {
	ID   string
	Info ConnInfo

	sock *websocket.Conn

	writeMu sync.Mutex

	idMu     sync.Mutex
	identity session.Identity
}

func newConn(id string, sock *websocket.Conn, info ConnInfo) *Conn {
	return &Conn{ID: id, Info: info, sock: sock}
}

// SetIdentity binds the user identity announced for this connection.
func (c *Conn) SetIdentity(id session.Identity) {
	c.idMu.Lock()
	c.identity = id
	c.idMu.Unlock()
}

// Identity returns the bound identity; ok is false before registration.
func (c *Conn) Identity() (session.Identity, bool) {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	return c.identity, c.identity.UserID != ""
}

func (c *Conn) write(event models.ServerEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sock.WriteMessage(websocket.TextMessage, payload)
}

// Hub tracks live websocket connections and the transport-level room
// subscriptions maintained by join-room/leave-room. The subscriptions exist
// only for the relay's legacy broadcast fallback; participant-addressed
// delivery goes through the connection registry instead.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	rooms  map[string]map[string]struct{}
	joined map[string]map[string]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns:  make(map[string]*Conn),
		rooms:  make(map[string]map[string]struct{}),
		joined: make(map[string]map[string]struct{}),
	}
}

// Add registers a connection.
func (h *Hub) Add(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.ID] = conn
}

// Remove drops a connection and all its room subscriptions.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, connID)
	for roomID := range h.joined[connID] {
		h.leaveLocked(roomID, connID)
	}
	delete(h.joined, connID)
}

// Join subscribes a connection to a raw room id.
func (h *Hub) Join(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return
	}
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]struct{})
	}
	h.rooms[roomID][connID] = struct{}{}
	if _, ok := h.joined[connID]; !ok {
		h.joined[connID] = make(map[string]struct{})
	}
	h.joined[connID][roomID] = struct{}{}
}

// Leave unsubscribes a connection from a room.
func (h *Hub) Leave(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(roomID, connID)
	if joined, ok := h.joined[connID]; ok {
		delete(joined, roomID)
	}
}

func (h *Hub) leaveLocked(roomID, connID string) {
	if conns, ok := h.rooms[roomID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Subscribers lists connection ids subscribed to a raw room id.
func (h *Hub) Subscribers(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.rooms[roomID]
	out := make([]string, 0, len(conns))
	for connID := range conns {
		out = append(out, connID)
	}
	return out
}

// Get looks up a live connection.
func (h *Hub) Get(connID string) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[connID]
	return conn, ok
}

// Deliver writes one event to one connection. A failed write closes the
// socket; the read loop then observes the close and performs full cleanup.
func (h *Hub) Deliver(connID string, event models.ServerEvent) error {
	conn, ok := h.Get(connID)
	if !ok {
		return ErrConnNotFound
	}
	if err := conn.write(event); err != nil {
		conn.sock.Close()
		return err
	}
	return nil
}
