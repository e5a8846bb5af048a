package memory

import (
	"context"
	"sync"
)

// ConnectionStore keeps the active-connection-per-device record in process.
type ConnectionStore struct {
	mu     sync.Mutex
	active map[string]string // device ID -> socket ID
}

func NewConnectionStore() *ConnectionStore {
	return &ConnectionStore{active: make(map[string]string)}
}

// Activate marks the socket as the device's active connection, returning the
// socket it superseded, if any.
func (s *ConnectionStore) Activate(_ context.Context, deviceID, socketID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.active[deviceID]
	s.active[deviceID] = socketID
	return prev, nil
}

// Deactivate clears the record, but only if the socket still owns it.
func (s *ConnectionStore) Deactivate(_ context.Context, deviceID, socketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[deviceID] == socketID {
		delete(s.active, deviceID)
	}
	return nil
}
