package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quizroom-service/internal/domain"
)

// IdentityStore persists the identities of one client device (identified by
// an opaque client id) so a reconnect resumes without rejoining:
//
//	HSET quizroom:identity:{clientID} {roomID} {json}
type IdentityStore struct {
	client   *redis.Client
	clientID string
	ttl      time.Duration
}

func NewIdentityStore(client *redis.Client, clientID string, ttl time.Duration) *IdentityStore {
	return &IdentityStore{client: client, clientID: clientID, ttl: ttl}
}

func (s *IdentityStore) Load(ctx context.Context, roomID string) (domain.Identity, bool, error) {
	raw, err := s.client.HGet(ctx, s.key(), roomID).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Identity{}, false, nil
	}
	if err != nil {
		return domain.Identity{}, false, unavailable(err)
	}
	var identity domain.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return domain.Identity{}, false, fmt.Errorf("decode identity: %w", err)
	}
	return identity, true, nil
}

func (s *IdentityStore) Save(ctx context.Context, identity domain.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(), identity.RoomID, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *IdentityStore) Clear(ctx context.Context, roomID string) error {
	if err := s.client.HDel(ctx, s.key(), roomID).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *IdentityStore) key() string {
	return "quizroom:identity:" + s.clientID
}
