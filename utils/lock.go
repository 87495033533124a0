package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a lock could not be acquired before the context ended.
var ErrLockTimeout = errors.New("lock acquire timeout")

const (
	lockTTL        = 15 * time.Second
	lockRetryDelay = 25 * time.Millisecond
)

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// KeyedLocker serializes work per key. With Redis it is shared by every
// instance of the service; without it the lock is process local.
type KeyedLocker struct {
	rc *redis.Client

	mu    sync.Mutex
	local map[string]*keyedMutex
}

type keyedMutex struct {
	ch   chan struct{}
	refs int
}

// NewKeyedLocker returns a locker backed by rc, or by in-process mutexes when rc is nil.
func NewKeyedLocker(rc *redis.Client) *KeyedLocker {
	return &KeyedLocker{rc: rc, local: map[string]*keyedMutex{}}
}

// Lock blocks until key is held or ctx ends. The returned func releases it.
func (l *KeyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.rc != nil {
		return l.lockRedis(ctx, key)
	}
	return l.lockLocal(ctx, key)
}

func (l *KeyedLocker) lockRedis(ctx context.Context, key string) (func(), error) {
	redisKey := cacheNamespace + "lock:" + key
	token := uuid.NewString()
	for {
		ok, err := l.rc.SetNX(ctx, redisKey, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ErrLockTimeout
		case <-time.After(lockRetryDelay):
		}
	}
	return func() {
		// release must survive a cancelled request context
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rc, []string{redisKey}, token).Err(); err != nil {
			Sugar.Warnf("release lock %s failed: %v", key, err)
		}
	}, nil
}

func (l *KeyedLocker) lockLocal(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.local[key]
	if !ok {
		m = &keyedMutex{ch: make(chan struct{}, 1)}
		l.local[key] = m
	}
	m.refs++
	l.mu.Unlock()

	select {
	case m.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, m)
		return nil, ErrLockTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-m.ch
			l.unref(key, m)
		})
	}, nil
}

func (l *KeyedLocker) unref(key string, m *keyedMutex) {
	l.mu.Lock()
	m.refs--
	if m.refs == 0 {
		delete(l.local, key)
	}
	l.mu.Unlock()
}
