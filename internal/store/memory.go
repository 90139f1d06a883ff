package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tafl-server/internal/tafl"
)

// Memory is an in-process store with the same semantics as the Postgres
// implementation, including the optimistic version check. It backs handler
// tests and lets the server run without a database for local development.
type Memory struct {
	mu    sync.RWMutex
	games map[string]*GameState
	chats map[string][]ChatMessage
	users map[string]*User
	seq   int64
}

func NewMemory() *Memory {
	return &Memory{
		games: make(map[string]*GameState),
		chats: make(map[string][]ChatMessage),
		users: make(map[string]*User),
	}
}

func (m *Memory) CreateGame(ctx context.Context, hostID string, hostRole, aiRole tafl.Role) (*GameState, error) {
	now := time.Now().UTC()
	game := &GameState{
		ID:            uuid.New().String(),
		Status:        StatusWaiting,
		CurrentPlayer: tafl.RoleAttacker,
		Board:         tafl.NewInitialBoard(),
		MoveHistory:   []tafl.Move{},
		HostID:        hostID,
		HostRole:      hostRole,
		AIRole:        aiRole,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if aiRole != "" {
		// An AI seat fills the game immediately.
		game.Status = StatusActive
	}

	m.mu.Lock()
	m.games[game.ID] = game
	m.mu.Unlock()

	return game.Clone(), nil
}

func (m *Memory) GetGame(ctx context.Context, id string) (*GameState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	game, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return game.Clone(), nil
}

func (m *Memory) JoinGame(ctx context.Context, id, userID string) (*GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	game, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	if game.HostID == userID || game.GuestID == userID {
		return game.Clone(), nil
	}
	if game.GuestID != "" || game.AIRole != "" {
		return nil, ErrSeatTaken
	}

	game.GuestID = userID
	game.Status = StatusActive
	game.Version++
	game.UpdatedAt = time.Now().UTC()
	return game.Clone(), nil
}

// UpdateGame persists a modified state. The write is rejected with
// ErrVersionConflict unless g.Version still matches the stored version; on
// success the stored and returned versions are incremented.
func (m *Memory) UpdateGame(ctx context.Context, g *GameState) (*GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.games[g.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if current.Version != g.Version {
		return nil, ErrVersionConflict
	}

	next := g.Clone()
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	m.games[g.ID] = next
	return next.Clone(), nil
}

func (m *Memory) AddChatMessage(ctx context.Context, gameID, senderID, message string) (*ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.games[gameID]; !ok {
		return nil, ErrNotFound
	}

	m.seq++
	msg := ChatMessage{
		ID:         m.seq,
		GameID:     gameID,
		SenderID:   senderID,
		SenderName: m.displayNameLocked(senderID),
		Message:    message,
		CreatedAt:  time.Now().UTC(),
	}
	m.chats[gameID] = append(m.chats[gameID], msg)
	return &msg, nil
}

func (m *Memory) GetGameChatMessages(ctx context.Context, gameID string) ([]ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.chats[gameID]
	out := make([]ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *Memory) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *user
	return &u, nil
}

// PutUser seeds a user record. The engine itself never creates users; the
// auth layer owns that.
func (m *Memory) PutUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = &u
}

func (m *Memory) UpdateUserLastSeen(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.LastSeenAt = time.Now().UTC()
	return nil
}

func (m *Memory) displayNameLocked(userID string) string {
	if user, ok := m.users[userID]; ok && user.DisplayName != "" {
		return user.DisplayName
	}
	return userID
}
