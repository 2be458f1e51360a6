package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/splax/gameportal/internal/domain"
)

const redisKeyPrefix = "gameportal:session:"

// RedisStore keeps sessions in Redis as JSON values with a TTL, so they are shared
// between portal instances and survive restarts.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an established Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: redisKeyPrefix}
}

func (s *RedisStore) Get(ctx context.Context, token string) (domain.Identity, error) {
	raw, err := s.client.Get(ctx, s.prefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Identity{}, ErrNotFound
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("redis get session: %w", err)
	}
	var identity domain.Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return domain.Identity{}, fmt.Errorf("decode session: %w", err)
	}
	return identity, nil
}

func (s *RedisStore) Put(ctx context.Context, token string, identity domain.Identity, ttl time.Duration) error {
	raw, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+token, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis put session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.prefix+token).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}
