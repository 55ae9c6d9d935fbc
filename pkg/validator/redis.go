package validator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces validator records in Redis.
const redisKeyPrefix = "catalog:validator:"

// RedisStore shares validator records across processes via Redis. Useful
// for proxy deployments where several instances talk to the same catalog:
// a token earned by one instance saves body transfers for all of them.
// Records carry no Redis TTL; only Invalidate removes them.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed validator store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
	}
}

// Get returns the record for endpointKey, or ErrNoRecord.
func (s *RedisStore) Get(ctx context.Context, endpointKey string) (*Record, error) {
	data, err := s.redis.Get(ctx, redisKeyPrefix+endpointKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			recordMisses.WithLabelValues("redis").Inc()
			return nil, ErrNoRecord
		}
		recordErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		recordErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("unmarshal validator record: %w", err)
	}

	recordHits.WithLabelValues("redis").Inc()
	return &rec, nil
}

// Put replaces the record for endpointKey wholesale.
func (s *RedisStore) Put(ctx context.Context, endpointKey, token string, payload []byte) error {
	data, err := json.Marshal(Record{
		Token:   token,
		Payload: payload,
	})
	if err != nil {
		recordErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal validator record: %w", err)
	}

	if err := s.redis.Set(ctx, redisKeyPrefix+endpointKey, data, 0).Err(); err != nil {
		recordErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	recordPuts.WithLabelValues("redis").Inc()
	return nil
}

// Invalidate removes the record for endpointKey, if any.
func (s *RedisStore) Invalidate(ctx context.Context, endpointKey string) error {
	if err := s.redis.Del(ctx, redisKeyPrefix+endpointKey).Err(); err != nil {
		recordErrors.WithLabelValues("invalidate").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	recordInvalidations.WithLabelValues("redis").Inc()
	return nil
}
