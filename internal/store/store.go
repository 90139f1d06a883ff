package store

import (
	"errors"
	"time"

	"tafl-server/internal/tafl"
)

// Sentinel errors shared by both store implementations.
var (
	ErrNotFound        = errors.New("GAME_NOT_FOUND: Game not found")
	ErrUserNotFound    = errors.New("USER_NOT_FOUND: User not found")
	ErrVersionConflict = errors.New("VERSION_CONFLICT: Game was modified concurrently")
	ErrSeatTaken       = errors.New("SEAT_TAKEN: Game already has two players")
)

type GameStatus string

const (
	StatusWaiting   GameStatus = "waiting"
	StatusActive    GameStatus = "active"
	StatusCompleted GameStatus = "completed"
)

// GameState is the authoritative record of one game. Handlers never hold a
// copy between requests; every mutation is read-modify-write through the
// store, guarded by Version.
type GameState struct {
	ID            string      `json:"id"`
	Status        GameStatus  `json:"status"`
	CurrentPlayer tafl.Role   `json:"currentPlayer"`
	Board         tafl.Board  `json:"board"`
	MoveHistory   []tafl.Move `json:"moveHistory"`
	Winner        tafl.Role   `json:"winner,omitempty"`
	WinCondition  string      `json:"winCondition,omitempty"`
	HostID        string      `json:"hostId"`
	GuestID       string      `json:"guestId,omitempty"`
	HostRole      tafl.Role   `json:"hostRole"`
	AIRole        tafl.Role   `json:"aiRole,omitempty"`
	Version       int         `json:"version"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// IsParticipant reports whether a user holds one of the two seats.
func (g *GameState) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return userID == g.HostID || userID == g.GuestID
}

// RoleOf returns which side a participant plays, derived from HostRole.
func (g *GameState) RoleOf(userID string) (tafl.Role, bool) {
	switch userID {
	case "":
		return "", false
	case g.HostID:
		return g.HostRole, true
	case g.GuestID:
		return g.HostRole.Opponent(), true
	}
	return "", false
}

func (g *GameState) Clone() *GameState {
	c := *g
	c.Board = g.Board.Clone()
	c.MoveHistory = make([]tafl.Move, len(g.MoveHistory))
	copy(c.MoveHistory, g.MoveHistory)
	return &c
}

type ChatMessage struct {
	ID         int64     `json:"id"`
	GameID     string    `json:"gameId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
}

type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}
