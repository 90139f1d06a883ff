package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/coder/websocket"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"

	"tafl-server/internal/ai"
	"tafl-server/internal/database"
	"tafl-server/internal/store"
)

const (
	// Inbound message budget per connection; generous for a turn-based game.
	rateLimitMessages = 20
	rateLimitWindow   = time.Second
)

type Server struct {
	port        int
	db          database.Service
	coordinator *SessionCoordinator
	heartbeat   *HeartbeatMonitor
	limiter     *RateLimiter
	log         zerolog.Logger

	cancelBackground context.CancelFunc
}

// NewServer wires the whole engine: storage (Postgres when DATABASE_URL is
// set, in-memory otherwise), the coordinator, and the background sweeps.
func NewServer() (*Server, *http.Server) {
	log := newLogger()

	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}

	var (
		dbService database.Service
		games     GameStore
		chats     ChatStore
		users     UserStore
	)
	if os.Getenv("DATABASE_URL") != "" {
		svc, err := database.New(context.Background())
		if err != nil {
			log.Fatal().Err(err).Msg("database init failed")
		}
		pg := store.NewPostgres(svc.Pool())
		dbService, games, chats, users = svc, pg, pg, pg
		log.Info().Msg("using postgres storage")
	} else {
		mem := store.NewMemory()
		games, chats, users = mem, mem, mem
		log.Warn().Msg("DATABASE_URL not set, using in-memory storage")
	}

	coordinator := NewSessionCoordinator(games, chats, users, ai.NewGreedy(time.Now().UnixNano()), log)

	s := &Server{
		port:        port,
		db:          dbService,
		coordinator: coordinator,
		limiter:     NewRateLimiter(rateLimitMessages, rateLimitWindow),
		log:         log,
	}
	s.heartbeat = NewHeartbeatMonitor(coordinator.Registry(), coordinator.EvictConnection, log)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelBackground = cancel
	go s.heartbeat.Run(ctx)
	go coordinator.RunQueueSweeper(ctx)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, httpServer
}

// Shutdown stops the background loops, tells connected clients the server is
// going away, and releases storage.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelBackground()

	for _, conn := range s.coordinator.Registry().All() {
		conn.Close(websocket.StatusGoingAway, "Server shutting down")
		s.coordinator.HandleDisconnect(conn)
	}

	if s.db != nil {
		s.db.Close()
	}
	s.log.Info().Msg("engine shut down")
	return nil
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && os.Getenv("LOG_LEVEL") != "" {
		level = parsed
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
