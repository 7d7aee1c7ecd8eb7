package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	platformredis "anchorid/internal/platform/redis"
	"anchorid/internal/ratelimit"
)

// RedisStore implements ratelimit.Store on a Redis sorted set per key, with
// request timestamps as scores. Counts are shared across instances.
type RedisStore struct {
	client *platformredis.Client
}

func NewRedisStore(client *platformredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Allow trims expired members, counts the window, and records the request if
// it fits. The key expires one window after the last request.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*ratelimit.Result, error) {
	now := time.Now()
	cutoff := now.Add(-window)

	pipe := s.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("ratelimit redis check: %w", err)
	}

	count := int(countCmd.Val())
	resetAt := now.Add(window)
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		resetAt = time.Unix(0, int64(oldest[0].Score)).Add(window)
	}

	if count >= limit {
		return &ratelimit.Result{
			Allowed:   false,
			Remaining: 0,
			Limit:     limit,
			ResetAt:   resetAt,
		}, nil
	}

	record := s.client.Pipeline()
	record.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	record.Expire(ctx, key, window)
	if _, err := record.Exec(ctx); err != nil {
		return nil, fmt.Errorf("ratelimit redis record: %w", err)
	}

	if count == 0 {
		resetAt = now.Add(window)
	}
	return &ratelimit.Result{
		Allowed:   true,
		Remaining: limit - count - 1,
		Limit:     limit,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the counter for a key.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
