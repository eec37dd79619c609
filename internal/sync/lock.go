package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Locker guards against overlapping sync runs. TryLock returns a release
// func when the lock was obtained and ok=false when another run holds it;
// an overlapping trigger is a no-op, not an error.
type Locker interface {
	TryLock(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}

const lockKey = "sync:run-lock"

// RedisLocker serializes runs across instances with a Redis lock.
type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb)}
}

func (l *RedisLocker) TryLock(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	lock, err := l.client.Obtain(ctx, lockKey, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}
	return release, true, nil
}

// LocalLocker serializes runs within one process.
type LocalLocker struct {
	mu   stdsync.Mutex
	held bool
}

func NewLocalLocker() *LocalLocker { return &LocalLocker{} }

func (l *LocalLocker) TryLock(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, false, nil
	}
	l.held = true
	release := func() {
		l.mu.Lock()
		l.held = false
		l.mu.Unlock()
	}
	return release, true, nil
}
