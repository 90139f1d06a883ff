package server

import (
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.corsMiddleware)

	r.Get("/health", s.healthHandler)
	r.Get("/ws", s.websocketHandler)

	r.Route("/api/games/{gameID}", func(r chi.Router) {
		r.Get("/", s.getGameHandler)
		r.Get("/replay", s.replayHandler)
		r.Post("/moves", s.postMoveHandler)
	})

	return r
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	report := map[string]string{"status": "up", "storage": "memory"}
	if s.db != nil {
		report = s.db.Health(r.Context())
		report["storage"] = "postgres"
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Debug().Err(err).Msg("failed to write response")
	}
}

// websocketHandler accepts a socket, registers it, and pumps inbound
// messages through the coordinator until the peer goes away. Every close
// path funnels through HandleDisconnect.
func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()
	connectionID := uuid.New().String()
	conn := s.coordinator.Registry().Register(connectionID, socket)
	s.log.Info().Str("conn", connectionID).Msg("connection opened")

	defer func() {
		s.limiter.RemoveConnection(connectionID)
		s.coordinator.HandleDisconnect(conn)
		s.log.Info().Str("conn", connectionID).Str("user", conn.UserID()).Msg("connection closed")
	}()

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			s.log.Debug().Str("conn", connectionID).Err(err).Msg("read loop ended")
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		if !s.limiter.Allow(connectionID) {
			s.coordinator.sendError(ctx, conn, errTooManyMessages)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.coordinator.sendError(ctx, conn, errInvalidJSON)
			continue
		}

		s.coordinator.Dispatch(ctx, conn, msg)
	}
}

var (
	errInvalidJSON     = jsonError("VALIDATION: Invalid JSON")
	errTooManyMessages = jsonError("RATE_LIMITED: Too many messages, slow down")
)

type jsonError string

func (e jsonError) Error() string { return string(e) }
