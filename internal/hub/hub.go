// Package hub tracks live websocket connections and the conversation
// session each one is bound to.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrBufferFull is returned when a connection's send buffer is full.
var ErrBufferFull = errors.New("send buffer full")

const sendBuffer = 64

// Connection is one websocket client.
type Connection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	writeMu sync.Mutex

	mu        sync.Mutex
	sessionID string
}

// SessionID returns the session the connection is bound to, if any.
func (c *Connection) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// WriteMessage writes a frame with the connection lock held.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

type sessionMessage struct {
	sessionID string
	data      []byte
}

// Hub fans session messages out to bound connections.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	sessions    map[string]map[string]*Connection

	broadcast chan sessionMessage
	done      chan struct{}
	stopped   bool
}

// New creates a Hub. Call Run to start delivery.
func New() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		sessions:    make(map[string]map[string]*Connection),
		broadcast:   make(chan sessionMessage, 256),
		done:        make(chan struct{}),
	}
}

// Run is the hub's main loop. It closes every connection's send channel
// when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, conn := range h.connections {
				close(conn.Send)
				delete(h.connections, id)
			}
			h.sessions = make(map[string]map[string]*Connection)
			h.stopped = true
			h.mu.Unlock()
			return

		case msg := <-h.broadcast:
			h.mu.RLock()
			var full []*Connection
			for _, conn := range h.sessions[msg.sessionID] {
				select {
				case conn.Send <- msg.data:
				default:
					full = append(full, conn)
				}
			}
			h.mu.RUnlock()
			for _, conn := range full {
				log.Printf("WARN: connection %s buffer full, closing", conn.ID)
				h.remove(conn)
			}
		}
	}
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	delete(h.connections, conn.ID)
	if sid := conn.SessionID(); sid != "" {
		delete(h.sessions[sid], conn.ID)
		if len(h.sessions[sid]) == 0 {
			delete(h.sessions, sid)
		}
	}
	close(conn.Send)
	log.Printf("Connection unregistered: %s", conn.ID)
}

// NewConnection wraps a socket. It is not registered yet.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   "conn_" + uuid.New().String()[:8],
		Conn: ws,
		Send: make(chan []byte, sendBuffer),
	}
}

// Register adds a connection to the hub. After the hub stopped, the
// connection's send channel is closed right away.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		close(conn.Send)
		return
	}
	h.connections[conn.ID] = conn
	log.Printf("Connection registered: %s", conn.ID)
}

// Unregister removes a connection and closes its send channel. It is safe to
// call more than once.
func (h *Hub) Unregister(conn *Connection) {
	h.remove(conn)
}

// BindSession moves a connection to sessionID.
func (h *Hub) BindSession(conn *Connection, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.mu.Lock()
	old := conn.sessionID
	conn.sessionID = sessionID
	conn.mu.Unlock()

	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	if old != "" && h.sessions[old] != nil {
		delete(h.sessions[old], conn.ID)
		if len(h.sessions[old]) == 0 {
			delete(h.sessions, old)
		}
	}
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[string]*Connection)
	}
	h.sessions[sessionID][conn.ID] = conn
}

// Broadcast queues data for every connection of a session. Messages are
// dropped when the queue is full or the hub has stopped.
func (h *Hub) Broadcast(sessionID string, data []byte) {
	select {
	case h.broadcast <- sessionMessage{sessionID: sessionID, data: data}:
	case <-h.done:
	default:
		log.Printf("WARN: broadcast queue full, dropping message for session %s", sessionID)
	}
}

// BroadcastJSON marshals v and broadcasts it to a session.
func (h *Hub) BroadcastJSON(sessionID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(sessionID, data)
	return nil
}

// SendJSON queues v for a single connection.
func (h *Hub) SendJSON(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return errors.New("connection closed")
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// HasSession reports whether any connection is bound to sessionID.
func (h *Hub) HasSession(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID]) > 0
}
