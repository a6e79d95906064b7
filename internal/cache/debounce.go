package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const debounceKeyPrefix = "ipguard:debounce:"

// RedisDebouncer grants one pass per key per window using SET NX with expiry.
type RedisDebouncer struct {
	client redis.Cmdable
}

// NewRedisDebouncer creates a debouncer backed by client.
func NewRedisDebouncer(client redis.Cmdable) *RedisDebouncer {
	return &RedisDebouncer{client: client}
}

// Allow reports whether key has not been seen within window, marking it as seen.
func (d *RedisDebouncer) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, debounceKeyPrefix+key, time.Now().UTC().Unix(), window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set debounce key: %w", err)
	}
	return ok, nil
}
