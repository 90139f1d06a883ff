package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"

	"tafl-server/internal/server"
)

func gracefulShutdown(engine *server.Server, httpServer *http.Server, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	zlog.Info().Msg("shutdown signal received, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := engine.Shutdown(ctx); err != nil {
		zlog.Error().Err(err).Msg("error during engine shutdown")
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		zlog.Error().Err(err).Msg("http server forced to shut down")
	}

	done <- true
}

func main() {
	engine, httpServer := server.NewServer()

	done := make(chan bool, 1)
	go gracefulShutdown(engine, httpServer, done)

	err := httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	<-done
	zlog.Info().Msg("graceful shutdown complete")
}
