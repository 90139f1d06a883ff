package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"tafl-server/internal/ai"
	"tafl-server/internal/store"
	"tafl-server/internal/tafl"
)

const (
	defaultQueueSweepInterval = time.Minute
	aiMoveDelay               = time.Second
	aiTimeLimit               = 2 * time.Second
)

// GameStore is the persistence collaborator for game state. Implemented by
// store.Postgres and store.Memory.
type GameStore interface {
	CreateGame(ctx context.Context, hostID string, hostRole, aiRole tafl.Role) (*store.GameState, error)
	GetGame(ctx context.Context, id string) (*store.GameState, error)
	JoinGame(ctx context.Context, id, userID string) (*store.GameState, error)
	UpdateGame(ctx context.Context, g *store.GameState) (*store.GameState, error)
}

type ChatStore interface {
	AddChatMessage(ctx context.Context, gameID, senderID, message string) (*store.ChatMessage, error)
	GetGameChatMessages(ctx context.Context, gameID string) ([]store.ChatMessage, error)
}

type UserStore interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
	UpdateUserLastSeen(ctx context.Context, id string) error
}

// SessionCoordinator owns the message dispatch loop and every piece of
// connection-scoped state: the registry, the room directory and the offline
// queue. Game state itself lives only in the GameStore; each mutation is
// read-validate-persist-broadcast under a per-game lock, and the store's
// version check backs that lock up across processes.
type SessionCoordinator struct {
	games    GameStore
	chats    ChatStore
	users    UserStore
	registry *ConnectionRegistry
	rooms    *RoomDirectory
	queue    *OfflineMessageQueue
	proposer ai.Proposer
	log      zerolog.Logger

	locksMu   sync.Mutex
	gameLocks map[string]*sync.Mutex
}

func NewSessionCoordinator(games GameStore, chats ChatStore, users UserStore, proposer ai.Proposer, log zerolog.Logger) *SessionCoordinator {
	queue := NewOfflineMessageQueue()
	return &SessionCoordinator{
		games:     games,
		chats:     chats,
		users:     users,
		registry:  NewConnectionRegistry(),
		rooms:     NewRoomDirectory(queue, log),
		queue:     queue,
		proposer:  proposer,
		log:       log.With().Str("component", "coordinator").Logger(),
		gameLocks: make(map[string]*sync.Mutex),
	}
}

func (co *SessionCoordinator) Registry() *ConnectionRegistry { return co.registry }

// lockGame serializes all mutations for one game id.
func (co *SessionCoordinator) lockGame(gameID string) func() {
	co.locksMu.Lock()
	l, ok := co.gameLocks[gameID]
	if !ok {
		l = &sync.Mutex{}
		co.gameLocks[gameID] = l
	}
	co.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

// releaseGameLock drops a completed game's lock entry so gameLocks tracks
// only games that can still change. A late arrival recreates the entry, and
// every mutation on a completed game is rejected regardless.
func (co *SessionCoordinator) releaseGameLock(gameID string) {
	co.locksMu.Lock()
	delete(co.gameLocks, gameID)
	co.locksMu.Unlock()
}

// Dispatch routes one inbound message. Handler failures become a single
// error event on the originating connection; they never touch room state and
// never close the socket.
func (co *SessionCoordinator) Dispatch(ctx context.Context, conn *Conn, msg ClientMessage) {
	var err error
	switch msg.Type {
	case "join_game":
		err = co.handleJoinGame(ctx, conn, msg)
	case "make_move":
		err = co.handleMakeMove(ctx, conn, msg)
	case "send_chat":
		err = co.handleSendChat(ctx, conn, msg)
	case "resign_game":
		err = co.handleResignGame(ctx, conn, msg)
	default:
		err = fmt.Errorf("VALIDATION: Unknown message type %q", msg.Type)
	}

	if err != nil {
		co.sendError(ctx, conn, err)
	}
}

func (co *SessionCoordinator) handleJoinGame(ctx context.Context, conn *Conn, msg ClientMessage) error {
	if msg.GameID == "" || msg.UserID == "" {
		return errors.New("VALIDATION: join_game requires gameId and userId")
	}

	game, err := co.games.GetGame(ctx, msg.GameID)
	if err != nil {
		return clientError(err)
	}

	// Switching games releases the old room membership first; otherwise the
	// connection would keep receiving the old game's broadcasts and hold its
	// room open.
	if old := conn.GameID(); old != "" && old != msg.GameID {
		co.rooms.Leave(old, conn.ID)
	}

	co.registry.Bind(conn.ID, msg.UserID, msg.GameID)
	co.rooms.Join(msg.GameID, conn, game.IsParticipant(msg.UserID))

	if err := co.users.UpdateUserLastSeen(ctx, msg.UserID); err != nil && !errors.Is(err, store.ErrUserNotFound) {
		co.log.Warn().Str("user", msg.UserID).Err(err).Msg("failed to update last seen")
	}

	// Joining changes no game state, so only the requester gets a snapshot.
	if err := conn.Send(ctx, gameUpdateMessage(game)); err != nil {
		return fmt.Errorf("CONNECTION: failed to send snapshot: %w", err)
	}

	history, err := co.chats.GetGameChatMessages(ctx, msg.GameID)
	if err != nil {
		return clientError(err)
	}
	if err := conn.Send(ctx, chatHistoryMessage(history)); err != nil {
		return fmt.Errorf("CONNECTION: failed to send chat history: %w", err)
	}

	co.deliverQueued(ctx, conn, msg.UserID)
	return nil
}

func (co *SessionCoordinator) handleMakeMove(ctx context.Context, conn *Conn, msg ClientMessage) error {
	if msg.Move == nil {
		return errors.New("VALIDATION: make_move requires a move")
	}
	userID := conn.UserID()
	if userID == "" {
		return errors.New("AUTH: Join a game before moving")
	}
	gameID := msg.GameID
	if gameID == "" {
		gameID = conn.GameID()
	}
	if gameID == "" {
		return errors.New("VALIDATION: make_move requires gameId")
	}

	_, err := co.SubmitMove(ctx, gameID, userID, *msg.Move)
	return err
}

// SubmitMove is the single write path for moves: the websocket handler, the
// REST move endpoint and the AI scheduler all come through here.
func (co *SessionCoordinator) SubmitMove(ctx context.Context, gameID, userID string, mv MovePayload) (*store.GameState, error) {
	unlock := co.lockGame(gameID)
	defer unlock()

	game, err := co.games.GetGame(ctx, gameID)
	if err != nil {
		return nil, clientError(err)
	}

	role, ok := game.RoleOf(userID)
	if !ok {
		return nil, errors.New("AUTH: Only a participant may move")
	}
	return co.applyMove(ctx, game, role, mv)
}

// applyMove runs the validate-transform-persist-broadcast pipeline. The
// caller must hold the game lock and pass freshly loaded state.
func (co *SessionCoordinator) applyMove(ctx context.Context, game *store.GameState, role tafl.Role, mv MovePayload) (*store.GameState, error) {
	switch game.Status {
	case store.StatusWaiting:
		return nil, errors.New("GAME_NOT_ACTIVE: Waiting for an opponent")
	case store.StatusCompleted:
		return nil, errors.New("GAME_NOT_ACTIVE: Game is over")
	}
	if game.CurrentPlayer != role {
		return nil, errors.New("NOT_YOUR_TURN: It is not your turn")
	}

	if !game.Board.InBounds(mv.From) || !game.Board.InBounds(mv.To) {
		return nil, errors.New("ILLEGAL_MOVE: position out of bounds")
	}
	piece := game.Board.At(mv.From)
	if piece == tafl.Empty {
		return nil, errors.New("ILLEGAL_MOVE: no piece at origin")
	}
	if piece.Side() != role {
		return nil, errors.New("AUTH: That piece is not yours")
	}
	if mv.Piece != "" && mv.Piece != piece {
		return nil, fmt.Errorf("VALIDATION: board has %s at origin, not %s", piece, mv.Piece)
	}

	next, move, err := tafl.ApplyMove(game.Board, mv.From, mv.To)
	if err != nil {
		return nil, fmt.Errorf("ILLEGAL_MOVE: %v", err)
	}

	game.Board = next
	game.MoveHistory = append(game.MoveHistory, move)
	game.CurrentPlayer = role.Opponent()
	if outcome := tafl.EvaluateWinCondition(next); outcome.Decided() {
		game.Status = store.StatusCompleted
		game.Winner = outcome.Winner
		game.WinCondition = outcome.Condition
	}

	updated, err := co.games.UpdateGame(ctx, game)
	if err != nil {
		return nil, clientError(err)
	}

	co.broadcastGame(ctx, updated)
	co.scheduleAIMove(updated)
	if updated.Status == store.StatusCompleted {
		co.releaseGameLock(updated.ID)
	}

	co.log.Info().Str("game", updated.ID).Str("role", string(role)).
		Int("moves", len(updated.MoveHistory)).Int("captured", len(move.Captured)).
		Str("status", string(updated.Status)).Msg("move applied")
	return updated, nil
}

func (co *SessionCoordinator) handleSendChat(ctx context.Context, conn *Conn, msg ClientMessage) error {
	userID := conn.UserID()
	if userID == "" {
		return errors.New("AUTH: Join a game before chatting")
	}
	if msg.Message == "" {
		return errors.New("VALIDATION: send_chat requires a message")
	}
	gameID := msg.GameID
	if gameID == "" {
		gameID = conn.GameID()
	}

	game, err := co.games.GetGame(ctx, gameID)
	if err != nil {
		return clientError(err)
	}

	saved, err := co.chats.AddChatMessage(ctx, gameID, userID, msg.Message)
	if err != nil {
		return clientError(err)
	}

	co.rooms.Broadcast(ctx, gameID, chatMessageEvent(saved), game.HostID, game.GuestID)
	return nil
}

func (co *SessionCoordinator) handleResignGame(ctx context.Context, conn *Conn, msg ClientMessage) error {
	userID := conn.UserID()
	if userID == "" {
		userID = msg.UserID
	} else if msg.UserID != "" && msg.UserID != userID {
		return errors.New("AUTH: Cannot resign for another user")
	}
	if userID == "" || msg.GameID == "" {
		return errors.New("VALIDATION: resign_game requires gameId and userId")
	}

	unlock := co.lockGame(msg.GameID)
	defer unlock()

	game, err := co.games.GetGame(ctx, msg.GameID)
	if err != nil {
		return clientError(err)
	}
	role, ok := game.RoleOf(userID)
	if !ok {
		return errors.New("AUTH: Only a participant may resign")
	}
	if game.Status != store.StatusActive {
		return errors.New("GAME_NOT_ACTIVE: Nothing to resign")
	}

	game.Status = store.StatusCompleted
	game.Winner = role.Opponent()
	game.WinCondition = tafl.WinResignation

	updated, err := co.games.UpdateGame(ctx, game)
	if err != nil {
		return clientError(err)
	}

	co.broadcastGame(ctx, updated)
	co.releaseGameLock(updated.ID)
	co.log.Info().Str("game", updated.ID).Str("resigned", string(role)).Msg("game resigned")
	return nil
}

// HandleDisconnect runs the close cleanup. It is shared by the read loop's
// defer and the heartbeat eviction path, and safe to run twice for the same
// connection.
func (co *SessionCoordinator) HandleDisconnect(conn *Conn) {
	if conn == nil {
		return
	}
	if gameID := conn.GameID(); gameID != "" {
		co.rooms.Leave(gameID, conn.ID)
	}
	if co.registry.Unregister(conn.ID) == nil {
		return
	}
	if userID := conn.UserID(); userID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := co.users.UpdateUserLastSeen(ctx, userID); err != nil && !errors.Is(err, store.ErrUserNotFound) {
			co.log.Warn().Str("user", userID).Err(err).Msg("failed to update last seen")
		}
	}
}

// EvictConnection force-closes a dead socket and runs the normal disconnect
// cleanup. Used by the heartbeat monitor.
func (co *SessionCoordinator) EvictConnection(conn *Conn, reason string) {
	conn.Close(websocket.StatusGoingAway, reason)
	co.HandleDisconnect(conn)
}

func (co *SessionCoordinator) broadcastGame(ctx context.Context, game *store.GameState) {
	co.rooms.Broadcast(ctx, game.ID, gameUpdateMessage(game), game.HostID, game.GuestID)
}

func (co *SessionCoordinator) scheduleAIMove(game *store.GameState) {
	if co.proposer == nil || game.Status != store.StatusActive {
		return
	}
	if game.AIRole == "" || game.CurrentPlayer != game.AIRole {
		return
	}
	gameID := game.ID
	time.AfterFunc(aiMoveDelay, func() {
		co.runAIMove(context.Background(), gameID)
	})
}

func (co *SessionCoordinator) runAIMove(ctx context.Context, gameID string) {
	unlock := co.lockGame(gameID)
	defer unlock()

	game, err := co.games.GetGame(ctx, gameID)
	if err != nil {
		co.log.Warn().Str("game", gameID).Err(err).Msg("ai move: load failed")
		return
	}
	if game.Status != store.StatusActive || game.AIRole == "" || game.CurrentPlayer != game.AIRole {
		return
	}

	mv := co.proposer.ProposeMove(game.Board, game.AIRole, aiTimeLimit)
	if mv == nil {
		co.log.Info().Str("game", gameID).Msg("ai move: no legal move available")
		return
	}
	if _, err := co.applyMove(ctx, game, game.AIRole, MovePayload{From: mv.From, To: mv.To}); err != nil {
		co.log.Error().Str("game", gameID).Err(err).Msg("ai move: rejected")
	}
}

// deliverQueued drains a user's offline queue onto a connection in original
// order. If a write fails, the rest goes back on the queue.
func (co *SessionCoordinator) deliverQueued(ctx context.Context, conn *Conn, userID string) {
	queued := co.queue.Drain(userID)
	for i, qm := range queued {
		if err := conn.Send(ctx, qm.Payload); err != nil {
			co.queue.Requeue(userID, queued[i:])
			co.log.Debug().Str("user", userID).Int("requeued", len(queued)-i).Err(err).
				Msg("drain interrupted")
			return
		}
	}
	if len(queued) > 0 {
		co.log.Info().Str("user", userID).Int("delivered", len(queued)).Msg("offline queue drained")
	}
}

// RunQueueSweeper periodically redelivers queued messages to users who came
// back and expires entries for users who did not.
func (co *SessionCoordinator) RunQueueSweeper(ctx context.Context) {
	ticker := time.NewTicker(defaultQueueSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			co.sweepQueues(ctx)
		}
	}
}

func (co *SessionCoordinator) sweepQueues(ctx context.Context) {
	now := time.Now()
	for _, userID := range co.queue.Users() {
		// Any registered connection counts as present, including one whose
		// heartbeat probe is still in flight; a failed write requeues.
		if conn := co.registry.LiveConnection(userID); conn != nil {
			co.deliverQueued(ctx, conn, userID)
			continue
		}
		if dropped := co.queue.Expire(userID, now); dropped > 0 {
			co.log.Info().Str("user", userID).Int("dropped", dropped).Msg("expired queued messages")
		}
	}
}

// clientError maps store failures to the error strings clients see. Known
// sentinels already carry their code; anything else is reported as a storage
// fault without leaking internals.
func clientError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrSeatTaken),
		errors.Is(err, store.ErrVersionConflict):
		return err
	default:
		return errors.New("STORAGE: Operation failed, please retry")
	}
}

func (co *SessionCoordinator) sendError(ctx context.Context, conn *Conn, err error) {
	co.log.Debug().Str("conn", conn.ID).Err(err).Msg("rejecting message")
	if sendErr := conn.Send(ctx, errorMessage(err.Error())); sendErr != nil {
		co.log.Debug().Str("conn", conn.ID).Err(sendErr).Msg("failed to send error")
	}
}
