package utils

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseLocker(t *testing.T, l *KeyedLocker) {
	t.Helper()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "user:1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestKeyedLocker_LocalSerializes(t *testing.T) {
	l := NewKeyedLocker(nil)
	exerciseLocker(t, l)
	assert.Empty(t, l.local)
}

func TestKeyedLocker_RedisSerializes(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rc.Close()

	exerciseLocker(t, NewKeyedLocker(rc))
	assert.False(t, mr.Exists(cacheNamespace+"lock:user:1"))
}

func TestKeyedLocker_DistinctKeysDoNotBlock(t *testing.T) {
	l := NewKeyedLocker(nil)
	unlockA, err := l.Lock(context.Background(), "user:1")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := l.Lock(ctx, "user:2")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedLocker_TimeoutWhileHeld(t *testing.T) {
	for name, rcFn := range map[string]func(t *testing.T) *redis.Client{
		"local": func(t *testing.T) *redis.Client { return nil },
		"redis": func(t *testing.T) *redis.Client {
			mr := miniredis.RunT(t)
			return redis.NewClient(&redis.Options{Addr: mr.Addr()})
		},
	} {
		t.Run(name, func(t *testing.T) {
			l := NewKeyedLocker(rcFn(t))
			unlock, err := l.Lock(context.Background(), "k")
			require.NoError(t, err)
			defer unlock()

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			_, err = l.Lock(ctx, "k")
			assert.ErrorIs(t, err, ErrLockTimeout)
		})
	}
}

func TestKeyedLocker_RedisReleaseKeepsForeignToken(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rc.Close()
	l := NewKeyedLocker(rc)

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	// simulate expiry followed by another holder taking the key
	require.NoError(t, mr.Set(cacheNamespace+"lock:k", "someone-else"))
	unlock()

	got, err := mr.Get(cacheNamespace + "lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
