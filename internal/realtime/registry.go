package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ConnectionStore persists which socket is the active connection for a device.
// Activating a device supersedes any prior active record and returns the
// superseded socket ID, if one existed. Writes are best effort: a store
// failure never blocks registration.
type ConnectionStore interface {
	Activate(ctx context.Context, deviceID, socketID string) (superseded string, err error)
	Deactivate(ctx context.Context, deviceID, socketID string) error
}

// Connection tracks one live socket and its owning device.
type Connection struct {
	SocketID      string
	DeviceID      string
	UserID        string
	Sink          Sink
	ConnectedAt   time.Time
	LastHeartbeat time.Time
	Reconnects    int
	Metadata      map[string]string
	// PersistedRef points at the superseded active record, when one existed.
	PersistedRef string
}

// roomEvicter breaks the registry/hub cycle: the hub implements it so that
// removing a connection cascades into every room it joined.
type roomEvicter interface {
	evictFromAllRooms(socketID string)
}

// Registry is the in-memory index of live connections. All operations are
// map lookups; unknown identifiers are no-ops.
type Registry struct {
	clock clockwork.Clock
	store ConnectionStore

	mu         sync.RWMutex
	conns      map[string]*Connection
	devices    map[string]string // device ID -> active socket ID
	reconnects map[string]int    // device ID -> reconnect count

	rooms roomEvicter
}

func NewRegistry(clock clockwork.Clock, store ConnectionStore) *Registry {
	return &Registry{
		clock:      clock,
		store:      store,
		conns:      make(map[string]*Connection),
		devices:    make(map[string]string),
		reconnects: make(map[string]int),
	}
}

// Register indexes a new connection and marks it as the device's active one,
// superseding any prior persisted record for the same device.
func (r *Registry) Register(ctx context.Context, conn *Connection) {
	now := r.clock.Now()
	conn.ConnectedAt = now
	conn.LastHeartbeat = now

	if r.store != nil {
		superseded, err := r.store.Activate(ctx, conn.DeviceID, conn.SocketID)
		if err != nil {
			log.Warn().Err(err).Str("device_id", conn.DeviceID).Msg("failed to persist active connection")
		} else {
			conn.PersistedRef = superseded
		}
	}

	r.mu.Lock()
	conn.Reconnects = r.reconnects[conn.DeviceID]
	r.conns[conn.SocketID] = conn
	r.devices[conn.DeviceID] = conn.SocketID
	r.mu.Unlock()
}

// Remove drops the connection and evicts it from every room it joined.
// Returns nil when the socket is unknown.
func (r *Registry) Remove(socketID string) *Connection {
	r.mu.Lock()
	conn, ok := r.conns[socketID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.conns, socketID)
	if r.devices[conn.DeviceID] == socketID {
		delete(r.devices, conn.DeviceID)
	}
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Deactivate(context.Background(), conn.DeviceID, socketID); err != nil {
			log.Warn().Err(err).Str("device_id", conn.DeviceID).Msg("failed to clear active connection")
		}
	}
	if r.rooms != nil {
		r.rooms.evictFromAllRooms(socketID)
	}
	return conn
}

// Get returns the connection for a socket, or nil.
func (r *Registry) Get(socketID string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[socketID]
}

// GetByDevice returns the device's active connection, or nil.
func (r *Registry) GetByDevice(deviceID string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if socketID, ok := r.devices[deviceID]; ok {
		return r.conns[socketID]
	}
	return nil
}

// TouchHeartbeat refreshes the liveness timestamp for a socket.
func (r *Registry) TouchHeartbeat(socketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[socketID]; ok {
		conn.LastHeartbeat = r.clock.Now()
	}
}

// IncrementReconnect bumps and returns the device's reconnect counter. The
// counter outlives individual connections so clients can report flapping.
func (r *Registry) IncrementReconnect(deviceID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconnects[deviceID]++
	count := r.reconnects[deviceID]
	if socketID, ok := r.devices[deviceID]; ok {
		if conn, ok := r.conns[socketID]; ok {
			conn.Reconnects = count
		}
	}
	return count
}

// silentSince returns sockets whose last heartbeat is older than the cutoff.
func (r *Registry) silentSince(cutoff time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stale []string
	for id, conn := range r.conns {
		if conn.LastHeartbeat.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	return stale
}

func (r *Registry) sink(socketID string) Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if conn, ok := r.conns[socketID]; ok {
		return conn.Sink
	}
	return nil
}
