package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectionStore keeps the active-connection-per-device record in Redis so
// a device reconnecting through another process still supersedes its prior
// socket. Writes are best effort; the registry logs and continues on failure.
type ConnectionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewConnectionStore(client *redis.Client, ttl time.Duration) *ConnectionStore {
	return &ConnectionStore{client: client, ttl: ttl}
}

// Activate marks the socket as the device's active connection and returns the
// superseded socket ID, if one was recorded.
func (s *ConnectionStore) Activate(ctx context.Context, deviceID, socketID string) (string, error) {
	key := s.key(deviceID)
	prev, err := s.client.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	if err := s.client.Set(ctx, key, socketID, s.ttl).Err(); err != nil {
		return "", err
	}
	return prev, nil
}

// Deactivate clears the record, but only while the socket still owns it.
func (s *ConnectionStore) Deactivate(ctx context.Context, deviceID, socketID string) error {
	key := s.key(deviceID)
	current, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if current != socketID {
		return nil
	}
	return s.client.Del(ctx, key).Err()
}

func (s *ConnectionStore) key(deviceID string) string {
	return "conn:device:" + deviceID
}
