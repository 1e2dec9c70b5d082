package lease

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces lease keys in a shared redis.
const keyPrefix = "amber:lease:"

// releaseScript deletes the lease only when the caller still holds it, so
// a release racing an expiry cannot drop another instance's lease.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker over a shared redis, coordinating
// multiple retention service instances.
type RedisLocker struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisLocker creates a redis-backed locker and verifies connectivity.
func NewRedisLocker(addr, password string, db int) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisLocker{
		client: client,
		logger: slog.Default().With("component", "lease.redis"),
	}, nil
}

// Acquire implements Locker via SET NX with the lease TTL.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.New().String()
	full := keyPrefix + key

	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{full}, token).Err(); err != nil && err != redis.Nil {
			l.logger.Warn("failed to release lease", "key", key, "error", err)
		}
	}
	return release, true, nil
}

// Close implements Locker.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
