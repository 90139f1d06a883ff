package server

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultPingTimeout       = 10 * time.Second
)

// HeartbeatMonitor sweeps every registered connection on a fixed interval
// and evicts the ones whose ping never comes back. This is the only
// mechanism that catches half-open sockets that never sent a close frame.
//
// coder/websocket's Ping blocks until the matching pong arrives, so one call
// per sweep covers both the probe and the alive check.
type HeartbeatMonitor struct {
	registry *ConnectionRegistry
	interval time.Duration
	timeout  time.Duration
	evict    func(conn *Conn, reason string)
	log      zerolog.Logger
}

func NewHeartbeatMonitor(registry *ConnectionRegistry, evict func(*Conn, string), log zerolog.Logger) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		registry: registry,
		interval: defaultHeartbeatInterval,
		timeout:  defaultPingTimeout,
		evict:    evict,
		log:      log.With().Str("component", "heartbeat").Logger(),
	}
}

// Run sweeps until the context is cancelled. Probes run concurrently so one
// dead peer cannot stall the sweep past its own timeout.
func (h *HeartbeatMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, conn := range h.registry.All() {
				go h.probe(ctx, conn)
			}
		}
	}
}

func (h *HeartbeatMonitor) probe(ctx context.Context, conn *Conn) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	conn.markUnconfirmed()
	if err := conn.Ping(ctx); err != nil {
		h.log.Info().Str("conn", conn.ID).Str("user", conn.UserID()).Err(err).
			Msg("heartbeat failed, evicting connection")
		h.evict(conn, "heartbeat timeout")
		return
	}
	conn.markAlive(time.Now())
}
