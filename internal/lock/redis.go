package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix    = "learncode:lock:"
	retryBackoff = 50 * time.Millisecond

	// DefaultTTL bounds how long a crashed holder keeps a Redis lock.
	DefaultTTL = 30 * time.Second
)

// releaseScript deletes the lock only if it still holds our token, so an
// expired lock taken over by someone else is left alone.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker backed by SET NX with an expiry.
type Redis struct {
	rdb *goredis.Client
	ttl time.Duration
	log *zap.Logger
}

// NewRedis connects to addr and verifies the connection with PING.
func NewRedis(ctx context.Context, addr string, ttl time.Duration, log *zap.Logger) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("lock: redis address is empty")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb, ttl: ttl, log: log}, nil
}

// Lock polls SET NX until it succeeds or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := r.rdb.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Join(ErrNotAcquired, ctx.Err())
			}
			return nil, fmt.Errorf("redis setnx: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-time.After(retryBackoff):
		}
	}

	return func() {
		// the caller's context may already be cancelled
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, r.rdb, []string{redisKey}, token).Err(); err != nil {
			r.log.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Open returns a Redis locker when redisAddr is set and an in-process one
// otherwise. Every process touching the same users must agree on this,
// or their locks do not exclude each other. The returned func releases
// the connection.
func Open(ctx context.Context, redisAddr string, ttl time.Duration, log *zap.Logger) (Locker, func() error, error) {
	if redisAddr == "" {
		return NewLocal(), func() error { return nil }, nil
	}
	r, err := NewRedis(ctx, redisAddr, ttl, log)
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}
