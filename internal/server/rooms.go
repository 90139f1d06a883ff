package server

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// GameRoom is the set of sockets watching one game: the two players plus any
// number of spectators.
type GameRoom struct {
	GameID     string
	players    map[string]*Conn // connection id -> connection
	spectators map[string]*Conn
}

func (r *GameRoom) empty() bool {
	return len(r.players) == 0 && len(r.spectators) == 0
}

func (r *GameRoom) members() []*Conn {
	out := make([]*Conn, 0, len(r.players)+len(r.spectators))
	for _, c := range r.players {
		out = append(out, c)
	}
	for _, c := range r.spectators {
		out = append(out, c)
	}
	return out
}

// RoomDirectory creates rooms lazily on first join and deletes them the
// moment the last member leaves, so abandoned games never accumulate.
type RoomDirectory struct {
	mu    sync.RWMutex
	rooms map[string]*GameRoom
	queue *OfflineMessageQueue
	log   zerolog.Logger
}

func NewRoomDirectory(queue *OfflineMessageQueue, log zerolog.Logger) *RoomDirectory {
	return &RoomDirectory{
		rooms: make(map[string]*GameRoom),
		queue: queue,
		log:   log.With().Str("component", "rooms").Logger(),
	}
}

func (d *RoomDirectory) Join(gameID string, conn *Conn, asPlayer bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[gameID]
	if !ok {
		room = &GameRoom{
			GameID:     gameID,
			players:    make(map[string]*Conn),
			spectators: make(map[string]*Conn),
		}
		d.rooms[gameID] = room
	}

	// A connection sits in exactly one of the two sets.
	delete(room.players, conn.ID)
	delete(room.spectators, conn.ID)
	if asPlayer {
		room.players[conn.ID] = conn
	} else {
		room.spectators[conn.ID] = conn
	}
}

func (d *RoomDirectory) Leave(gameID, connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[gameID]
	if !ok {
		return
	}
	delete(room.players, connID)
	delete(room.spectators, connID)
	if room.empty() {
		delete(d.rooms, gameID)
	}
}

// Broadcast delivers a message to every socket in the room. Participants
// named in offlineUserIDs who have no socket in the room get the message
// queued instead of dropped, as does any member whose write fails.
func (d *RoomDirectory) Broadcast(ctx context.Context, gameID string, msg ServerMessage, offlineUserIDs ...string) {
	d.mu.RLock()
	room, ok := d.rooms[gameID]
	var members []*Conn
	if ok {
		members = room.members()
	}
	d.mu.RUnlock()

	present := make(map[string]bool)
	for _, conn := range members {
		if userID := conn.UserID(); userID != "" {
			present[userID] = true
		}
		if err := conn.Send(ctx, msg); err != nil {
			d.log.Debug().Str("game", gameID).Str("conn", conn.ID).Err(err).
				Msg("broadcast write failed, queueing")
			if userID := conn.UserID(); userID != "" {
				d.queue.Enqueue(userID, msg)
			}
		}
	}

	for _, userID := range offlineUserIDs {
		if userID == "" || present[userID] {
			continue
		}
		d.queue.Enqueue(userID, msg)
	}
}

// Counts reports room membership; (0, 0) means the room does not exist.
func (d *RoomDirectory) Counts(gameID string) (players, spectators int) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	room, ok := d.rooms[gameID]
	if !ok {
		return 0, 0
	}
	return len(room.players), len(room.spectators)
}

func (d *RoomDirectory) RoomCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}
