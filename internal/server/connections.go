package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// socket is the slice of *websocket.Conn the registry needs. Tests substitute
// a capturing fake.
type socket interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Ping(ctx context.Context) error
	Close(code websocket.StatusCode, reason string) error
}

// Conn is one live websocket with its session binding. UserID and GameID are
// empty until the client sends join_game; until then the connection is a
// bare pending connection.
type Conn struct {
	ID string

	sock    socket
	writeMu sync.Mutex // one writer at a time on the socket

	mu         sync.Mutex
	userID     string
	gameID     string
	lastPingAt time.Time
	alive      bool
}

func (c *Conn) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Conn) GameID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameID
}

func (c *Conn) LastPingAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPingAt
}

func (c *Conn) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *Conn) markUnconfirmed() {
	c.mu.Lock()
	c.alive = false
	c.mu.Unlock()
}

func (c *Conn) markAlive(t time.Time) {
	c.mu.Lock()
	c.alive = true
	c.lastPingAt = t
	c.mu.Unlock()
}

// Send marshals and writes one message. coder/websocket allows a single
// concurrent writer, so writes are serialized per connection.
func (c *Conn) Send(ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sock.Write(ctx, websocket.MessageText, data)
}

// Ping probes the peer and waits for the pong.
func (c *Conn) Ping(ctx context.Context) error {
	return c.sock.Ping(ctx)
}

func (c *Conn) Close(code websocket.StatusCode, reason string) {
	c.sock.Close(code, reason)
}

// ConnectionRegistry tracks every live connection and its user/game binding.
// All mutation goes through these methods; handlers never touch the maps.
type ConnectionRegistry struct {
	mu     sync.RWMutex
	conns  map[string]*Conn // connection id -> connection
	byUser map[string]*Conn // user id -> most recent bound connection
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns:  make(map[string]*Conn),
		byUser: make(map[string]*Conn),
	}
}

func (r *ConnectionRegistry) Register(id string, sock socket) *Conn {
	conn := &Conn{
		ID:         id,
		sock:       sock,
		lastPingAt: time.Now(),
		alive:      true,
	}

	r.mu.Lock()
	r.conns[id] = conn
	r.mu.Unlock()
	return conn
}

// Bind attaches a user and game to a connection after join_game. A user's
// newest connection wins the byUser slot; an older one keeps receiving room
// broadcasts until it closes.
func (r *ConnectionRegistry) Bind(id, userID, gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return
	}
	conn.mu.Lock()
	conn.userID = userID
	conn.gameID = gameID
	conn.mu.Unlock()
	r.byUser[userID] = conn
}

func (r *ConnectionRegistry) Unregister(id string) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return nil
	}
	delete(r.conns, id)
	if userID := conn.UserID(); userID != "" && r.byUser[userID] == conn {
		delete(r.byUser, userID)
	}
	return conn
}

func (r *ConnectionRegistry) Get(id string) *Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[id]
}

// LiveConnection returns the current bound connection for a user, or nil.
func (r *ConnectionRegistry) LiveConnection(userID string) *Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUser[userID]
}

func (r *ConnectionRegistry) All() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
