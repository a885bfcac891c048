package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/coverage-server/internal/protocol"
)

const keyPrefix = "task-result:"

// RedisStore keeps results in Redis with a per-key expiry.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore creates a store writing keys that expire after ttl.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: client, ttl: ttl}
}

func resultKey(taskID string) string {
	return keyPrefix + taskID
}

// Put saves the result for its task id, replacing any earlier state.
func (s *RedisStore) Put(ctx context.Context, r *protocol.TaskResult) error {
	payload, err := encodePayload(r)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, resultKey(r.TaskID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set result in Redis: %w", err)
	}
	return nil
}

// Get retrieves the result for a task id.
func (s *RedisStore) Get(ctx context.Context, taskID string) (*protocol.TaskResult, error) {
	payload, err := s.redis.Get(ctx, resultKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result from Redis: %w", err)
	}
	return decodePayload(payload)
}

// Delete forgets a task's result.
func (s *RedisStore) Delete(ctx context.Context, taskID string) error {
	return s.redis.Del(ctx, resultKey(taskID)).Err()
}

// Ping checks connectivity for health reporting.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
