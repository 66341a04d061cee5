package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares quota counters across processes. The fan-out core itself
// is single-instance, but the application's HTTP tier is not.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	// Fixed window: bucket the key by window index so a fresh bucket starts
	// with TTL = window.
	secs := windowSeconds(window)
	bucket := time.Now().Unix() / secs
	bucketKey := fmt.Sprintf("guard:%s:%d", key, bucket)

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, bucketKey)
	pipe.Expire(ctx, bucketKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("quota incr failed: %w", err)
	}

	resetAt := time.Unix((bucket+1)*secs, 0)
	return int(incr.Val()), resetAt, nil
}

// windowSeconds rounds the window down to whole seconds, with a one second
// floor so sub-second windows cannot zero the bucket divisor.
func windowSeconds(window time.Duration) int64 {
	secs := int64(window / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
