package realtime

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically scans the registry and force-disconnects sockets that
// have gone silent. It is the only mechanism that detects dead clients; there
// is no per-message liveness check.
type Sweeper struct {
	hub      *Hub
	registry *Registry
	clock    clockwork.Clock
	interval time.Duration
	timeout  time.Duration
}

func NewSweeper(hub *Hub, registry *Registry, clock clockwork.Clock, interval, timeout time.Duration) *Sweeper {
	return &Sweeper{
		hub:      hub,
		registry: registry,
		clock:    clock,
		interval: interval,
		timeout:  timeout,
	}
}

// Run sweeps on a fixed interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Sweep()
		}
	}
}

// Sweep disconnects every socket whose last heartbeat exceeds the timeout.
func (s *Sweeper) Sweep() {
	cutoff := s.clock.Now().Add(-s.timeout)
	for _, socketID := range s.registry.silentSince(cutoff) {
		log.Warn().Str("socket_id", socketID).Dur("timeout", s.timeout).Msg("disconnecting silent socket")
		s.hub.Disconnect(socketID)
	}
}
