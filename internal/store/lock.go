package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const runLockPrefix = "notifier:run:"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLocker guards against two concurrent runs for the same application.
type RunLocker interface {
	// TryLock returns ok=false when another run holds key.
	TryLock(ctx context.Context, key string) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

type RedisRunLocker struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisRunLocker(client redis.Cmdable, ttl time.Duration) *RedisRunLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisRunLocker{client: client, ttl: ttl}
}

func (l *RedisRunLocker) TryLock(ctx context.Context, key string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, runLockPrefix+key, token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("run lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *RedisRunLocker) Unlock(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{runLockPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("run unlock %s: %w", key, err)
	}
	return nil
}
