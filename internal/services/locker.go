package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"

	"github.com/havenstay/leaseflow-backend/internal/platform/envutil"
	"github.com/havenstay/leaseflow-backend/internal/platform/logger"
)

type UnlockFunc func()

// Locker serializes check-then-insert critical sections. Lease admission
// locks per property, billing locks per contract; callers on different
// keys never contend.
type Locker interface {
	Acquire(ctx context.Context, key string) (UnlockFunc, error)
}

type redisLocker struct {
	log    *logger.Logger
	locker *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

// NewRedisLocker backs the critical section with redislock so multiple
// instances of the service serialize against the same Redis.
func NewRedisLocker(log *logger.Logger, rdb *goredis.Client) Locker {
	ttl := envutil.Seconds("PROPERTY_LOCK_TTL_SECONDS", 30*time.Second)
	return &redisLocker{
		log:    log.With("component", "RedisLocker"),
		locker: redislock.New(rdb),
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 100),
	}
}

func (l *redisLocker) Acquire(ctx context.Context, key string) (UnlockFunc, error) {
	lock, err := l.locker.Obtain(ctx, key, l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if err == redislock.ErrNotObtained {
		return nil, fmt.Errorf("lock %q not obtained: %w", key, err)
	}
	if err != nil {
		return nil, fmt.Errorf("lock %q: %w", key, err)
	}
	return func() {
		if relErr := lock.Release(context.Background()); relErr != nil && relErr != redislock.ErrLockNotHeld {
			l.log.Warn("Failed to release lock", "key", key, "error", relErr)
		}
	}, nil
}

// localLocker serializes within a single process. Used for single-instance
// deployments without Redis and by the test suite; the production wiring
// prefers NewRedisLocker whenever REDIS_ADDR is set.
type localLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() Locker {
	return &localLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *localLocker) Acquire(ctx context.Context, key string) (UnlockFunc, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("empty lock key")
	}
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return func() { m.Unlock() }, nil
}
