package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tafl-server/internal/tafl"
)

func TestMemory_CreateGame(t *testing.T) {
	assert := assert.New(t)

	m := NewMemory()
	game, err := m.CreateGame(context.Background(), "host-1", tafl.RoleDefender, "")
	require.NoError(t, err)

	assert.NotEmpty(game.ID)
	assert.Equal(StatusWaiting, game.Status)
	assert.Equal(tafl.RoleAttacker, game.CurrentPlayer)
	assert.Equal("host-1", game.HostID)
	assert.Equal(tafl.RoleDefender, game.HostRole)
	assert.Equal(1, game.Version)
	assert.Empty(game.MoveHistory)
	assert.Equal(tafl.King, game.Board.At(game.Board.Throne()))
}

func TestMemory_CreateGame_AISeat(t *testing.T) {
	m := NewMemory()
	game, err := m.CreateGame(context.Background(), "host-1", tafl.RoleDefender, tafl.RoleAttacker)
	require.NoError(t, err)

	// An AI opponent means the game never waits for a guest.
	assert.Equal(t, StatusActive, game.Status)
	assert.Equal(t, tafl.RoleAttacker, game.AIRole)
}

func TestMemory_GetGame_NotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.GetGame(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_JoinGame(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	m := NewMemory()
	created, err := m.CreateGame(ctx, "host-1", tafl.RoleAttacker, "")
	require.NoError(t, err)

	joined, err := m.JoinGame(ctx, created.ID, "guest-1")
	require.NoError(t, err)
	assert.Equal(StatusActive, joined.Status)
	assert.Equal("guest-1", joined.GuestID)
	assert.Equal(created.Version+1, joined.Version)

	// Rejoining as an existing participant is idempotent.
	again, err := m.JoinGame(ctx, created.ID, "guest-1")
	require.NoError(t, err)
	assert.Equal(joined.Version, again.Version)

	hostAgain, err := m.JoinGame(ctx, created.ID, "host-1")
	require.NoError(t, err)
	assert.Equal("host-1", hostAgain.HostID)

	// A third user finds the seat taken.
	_, err = m.JoinGame(ctx, created.ID, "late-comer")
	assert.ErrorIs(err, ErrSeatTaken)
}

func TestMemory_JoinGame_AISeatTaken(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	created, err := m.CreateGame(ctx, "host-1", tafl.RoleDefender, tafl.RoleAttacker)
	require.NoError(t, err)

	_, err = m.JoinGame(ctx, created.ID, "guest-1")
	assert.ErrorIs(t, err, ErrSeatTaken)
}

func TestMemory_UpdateGame_VersionCheck(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	m := NewMemory()
	created, err := m.CreateGame(ctx, "host-1", tafl.RoleAttacker, "")
	require.NoError(t, err)

	first := created.Clone()
	first.CurrentPlayer = tafl.RoleDefender
	updated, err := m.UpdateGame(ctx, first)
	require.NoError(t, err)
	assert.Equal(created.Version+1, updated.Version)
	assert.Equal(tafl.RoleDefender, updated.CurrentPlayer)

	// A second writer holding the original snapshot loses the race.
	stale := created.Clone()
	stale.CurrentPlayer = tafl.RoleDefender
	_, err = m.UpdateGame(ctx, stale)
	assert.ErrorIs(err, ErrVersionConflict)
}

func TestMemory_UpdateGame_NotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.UpdateGame(context.Background(), &GameState{ID: "missing", Version: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_Clone_Isolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	created, err := m.CreateGame(ctx, "host-1", tafl.RoleAttacker, "")
	require.NoError(t, err)

	// Mutating a returned snapshot must not leak into the store.
	created.Board.Cells[0][0] = tafl.Attacker
	created.Status = StatusCompleted

	fresh, err := m.GetGame(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, tafl.Empty, fresh.Board.At(tafl.Position{Row: 0, Col: 0}))
	assert.Equal(t, StatusWaiting, fresh.Status)
}

func TestMemory_Chat(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	m := NewMemory()
	m.PutUser(User{ID: "host-1", DisplayName: "Astrid"})
	created, err := m.CreateGame(ctx, "host-1", tafl.RoleAttacker, "")
	require.NoError(t, err)

	first, err := m.AddChatMessage(ctx, created.ID, "host-1", "good luck")
	require.NoError(t, err)
	assert.Equal("Astrid", first.SenderName)

	second, err := m.AddChatMessage(ctx, created.ID, "guest-1", "you too")
	require.NoError(t, err)
	assert.Greater(second.ID, first.ID)
	// Unknown senders fall back to their id.
	assert.Equal("guest-1", second.SenderName)

	msgs, err := m.GetGameChatMessages(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal("good luck", msgs[0].Message)
	assert.Equal("you too", msgs[1].Message)

	_, err = m.AddChatMessage(ctx, "missing", "host-1", "hello?")
	assert.ErrorIs(err, ErrNotFound)
}

func TestMemory_Users(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	m := NewMemory()
	m.PutUser(User{ID: "u-1", DisplayName: "Bjorn"})

	user, err := m.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal("Bjorn", user.DisplayName)
	assert.True(user.LastSeenAt.IsZero())

	require.NoError(t, m.UpdateUserLastSeen(ctx, "u-1"))
	user, err = m.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.False(user.LastSeenAt.IsZero())

	_, err = m.GetUser(ctx, "ghost")
	assert.ErrorIs(err, ErrUserNotFound)
	assert.ErrorIs(m.UpdateUserLastSeen(ctx, "ghost"), ErrUserNotFound)
}
