package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceTTL = 24 * time.Hour

// PresenceStore tracks which users currently hold a live socket. Keys:
// <prefix>:presence:<userID> -> connection count with a TTL safety net so
// crashed instances don't leave users permanently online.
type PresenceStore struct {
	client *redis.Client
	prefix string
}

func NewPresenceStore(client *redis.Client, prefix string) *PresenceStore {
	return &PresenceStore{client: client, prefix: prefix}
}

func (s *PresenceStore) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

// Connected increments the user's live-socket count.
func (s *PresenceStore) Connected(ctx context.Context, userID string) error {
	key := s.key(userID)
	if err := s.client.Incr(ctx, key).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, presenceTTL).Err()
}

// Disconnected decrements the count and clears the key when it reaches zero.
func (s *PresenceStore) Disconnected(ctx context.Context, userID string) error {
	n, err := s.client.Decr(ctx, s.key(userID)).Result()
	if err != nil {
		return err
	}
	if n <= 0 {
		return s.client.Del(ctx, s.key(userID)).Err()
	}
	return nil
}

func (s *PresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
