package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tafl-server/internal/tafl"
)

// Postgres persists games, chat and users through a pgx connection pool.
// Boards are stored in the codec's row-string form, move histories as JSONB.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const gameColumns = `id, status, current_player, board, move_history, winner,
	win_condition, host_id, guest_id, host_role, ai_role, version, created_at, updated_at`

func (p *Postgres) CreateGame(ctx context.Context, hostID string, hostRole, aiRole tafl.Role) (*GameState, error) {
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
		game.Status = StatusActive
	}

	history, err := json.Marshal(game.MoveHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize move history: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO games (`+gameColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		game.ID, game.Status, game.CurrentPlayer, tafl.EncodeBoard(game.Board), history,
		game.Winner, game.WinCondition, game.HostID, game.GuestID, game.HostRole,
		game.AIRole, game.Version, game.CreatedAt, game.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	return game, nil
}

func (p *Postgres) GetGame(ctx context.Context, id string) (*GameState, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id)
	game, err := scanGame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", id, err)
	}
	return game, nil
}

func (p *Postgres) JoinGame(ctx context.Context, id, userID string) (*GameState, error) {
	game, err := p.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	if game.HostID == userID || game.GuestID == userID {
		return game, nil
	}
	if game.GuestID != "" || game.AIRole != "" {
		return nil, ErrSeatTaken
	}

	tag, err := p.pool.Exec(ctx, `
		UPDATE games
		SET guest_id = $2, status = $3, version = version + 1, updated_at = now()
		WHERE id = $1 AND guest_id = '' AND version = $4`,
		id, userID, StatusActive, game.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to join game %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrVersionConflict
	}
	return p.GetGame(ctx, id)
}

// UpdateGame writes a modified state back, guarded by the version the caller
// read. A stale version gets ErrVersionConflict and no write.
func (p *Postgres) UpdateGame(ctx context.Context, g *GameState) (*GameState, error) {
	history, err := json.Marshal(g.MoveHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize move history: %w", err)
	}

	tag, err := p.pool.Exec(ctx, `
		UPDATE games
		SET status = $2, current_player = $3, board = $4, move_history = $5,
		    winner = $6, win_condition = $7, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $8`,
		g.ID, g.Status, g.CurrentPlayer, tafl.EncodeBoard(g.Board), history,
		g.Winner, g.WinCondition, g.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update game %s: %w", g.ID, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := p.GetGame(ctx, g.ID); errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrVersionConflict
	}
	return p.GetGame(ctx, g.ID)
}

func (p *Postgres) AddChatMessage(ctx context.Context, gameID, senderID, message string) (*ChatMessage, error) {
	msg := ChatMessage{
		GameID:   gameID,
		SenderID: senderID,
		Message:  message,
	}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (game_id, sender_id, message)
		VALUES ($1, $2, $3)
		RETURNING id, created_at,
			COALESCE((SELECT NULLIF(display_name, '') FROM users WHERE id = $2), $2)`,
		gameID, senderID, message,
	).Scan(&msg.ID, &msg.CreatedAt, &msg.SenderName)
	if err != nil {
		return nil, fmt.Errorf("failed to add chat message: %w", err)
	}
	return &msg, nil
}

func (p *Postgres) GetGameChatMessages(ctx context.Context, gameID string) ([]ChatMessage, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT m.id, m.game_id, m.sender_id,
			COALESCE(NULLIF(u.display_name, ''), m.sender_id),
			m.message, m.created_at
		FROM chat_messages m
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.game_id = $1
		ORDER BY m.id`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.GameID, &m.SenderID, &m.SenderName, &m.Message, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat messages: %w", err)
	}
	return msgs, nil
}

func (p *Postgres) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := p.pool.QueryRow(ctx,
		`SELECT id, display_name, last_seen_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.DisplayName, &u.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", id, err)
	}
	return &u, nil
}

func (p *Postgres) UpdateUserLastSeen(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE users SET last_seen_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update last seen for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanGame(row pgx.Row) (*GameState, error) {
	var (
		g       GameState
		rows    []string
		history []byte
	)
	err := row.Scan(&g.ID, &g.Status, &g.CurrentPlayer, &rows, &history, &g.Winner,
		&g.WinCondition, &g.HostID, &g.GuestID, &g.HostRole, &g.AIRole, &g.Version,
		&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}

	board, err := tafl.DecodeBoard(rows)
	if err != nil {
		return nil, fmt.Errorf("corrupt board for game %s: %w", g.ID, err)
	}
	g.Board = board

	if err := json.Unmarshal(history, &g.MoveHistory); err != nil {
		return nil, fmt.Errorf("corrupt move history for game %s: %w", g.ID, err)
	}
	if g.MoveHistory == nil {
		g.MoveHistory = []tafl.Move{}
	}
	return &g, nil
}
