package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tafl-server/internal/store"
	"tafl-server/internal/tafl"
)

// The REST surface exists for non-socket clients and tooling. It goes
// through the exact same coordinator paths as the websocket handlers, so
// both surfaces always agree on rule outcomes.

func (s *Server) getGameHandler(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")

	game, err := s.coordinator.games.GetGame(r.Context(), gameID)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// ReplayStep is one reconstructed position in a game's history.
type ReplayStep struct {
	Move  tafl.Move `json:"move"`
	Board []string  `json:"board"`
}

type ReplayResponse struct {
	GameID     string       `json:"gameId"`
	Steps      []ReplayStep `json:"steps"`
	FinalBoard []string     `json:"finalBoard"`
	Consistent bool         `json:"consistent"`
}

// replayHandler recomputes every position from the initial board through the
// rule engine and reports whether the replayed final position matches the
// stored one.
func (s *Server) replayHandler(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")

	game, err := s.coordinator.games.GetGame(r.Context(), gameID)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	board := tafl.NewInitialBoard()
	steps := make([]ReplayStep, 0, len(game.MoveHistory))
	for _, m := range game.MoveHistory {
		next, applied, err := tafl.ApplyMove(board, m.From, m.To)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError,
				map[string]string{"error": "STORAGE: stored history does not replay: " + err.Error()})
			return
		}
		board = next
		steps = append(steps, ReplayStep{Move: applied, Board: tafl.EncodeBoard(next)})
	}

	final := tafl.EncodeBoard(board)
	stored := tafl.EncodeBoard(game.Board)
	consistent := len(final) == len(stored)
	for i := 0; consistent && i < len(final); i++ {
		consistent = final[i] == stored[i]
	}

	writeJSON(w, http.StatusOK, ReplayResponse{
		GameID:     gameID,
		Steps:      steps,
		FinalBoard: final,
		Consistent: consistent,
	})
}

type restMoveRequest struct {
	UserID string      `json:"userId"`
	Move   MovePayload `json:"move"`
}

func (s *Server) postMoveHandler(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")

	var req restMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "VALIDATION: Invalid JSON"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "VALIDATION: userId is required"})
		return
	}

	game, err := s.coordinator.SubmitMove(r.Context(), gameID, req.UserID, req.Move)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// writeAPIError maps the coordinator's coded error strings onto HTTP status
// codes.
func writeAPIError(w http.ResponseWriter, err error) {
	msg := err.Error()
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrUserNotFound):
		status = http.StatusNotFound
	case strings.HasPrefix(msg, "VALIDATION:"), strings.HasPrefix(msg, "ILLEGAL_MOVE:"):
		status = http.StatusBadRequest
	case strings.HasPrefix(msg, "AUTH:"), strings.HasPrefix(msg, "NOT_YOUR_TURN:"):
		status = http.StatusForbidden
	case strings.HasPrefix(msg, "GAME_NOT_FOUND:"):
		status = http.StatusNotFound
	case strings.HasPrefix(msg, "GAME_NOT_ACTIVE:"), strings.HasPrefix(msg, "VERSION_CONFLICT:"), strings.HasPrefix(msg, "SEAT_TAKEN:"):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
