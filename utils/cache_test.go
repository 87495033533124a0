package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	prev := redisClient
	SetRedis(rc)
	t.Cleanup(func() {
		_ = rc.Close()
		SetRedis(prev)
	})
	return mr
}

func TestCacheJSONRoundTrip(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	type payload struct {
		Total int `json:"total"`
	}
	key := SummaryCacheKey(7, "2024-03-15", 0)
	CacheSetJSON(ctx, key, payload{Total: 3}, time.Minute)
	assert.True(t, mr.Exists("homedash:habits:7:summary:2024-03-15:v0"))

	var got payload
	require.True(t, CacheGetJSON(ctx, key, &got))
	assert.Equal(t, 3, got.Total)

	mr.FastForward(2 * time.Minute)
	assert.False(t, CacheGetJSON(ctx, key, &got))
}

func TestInvalidateByPrefixOnlyTouchesOneUser(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	CacheSetBytes(ctx, SummaryCacheKey(1, "2024-03-15", 0), []byte("a"), 0)
	CacheSetBytes(ctx, SummaryCacheKey(12, "2024-03-15", 0), []byte("b"), 0)

	InvalidateByPrefix(ctx, HabitCachePrefix(1))

	assert.False(t, mr.Exists(SummaryCacheKey(1, "2024-03-15", 0)))
	assert.True(t, mr.Exists(SummaryCacheKey(12, "2024-03-15", 0)))
}

func TestCacheVersionSurvivesPrefixInvalidation(t *testing.T) {
	withMiniredis(t)
	ctx := context.Background()

	assert.Zero(t, CacheVersion(ctx, 3))
	BumpCacheVersion(ctx, 3)
	BumpCacheVersion(ctx, 3)
	assert.EqualValues(t, 2, CacheVersion(ctx, 3))
	assert.Zero(t, CacheVersion(ctx, 4))

	InvalidateByPrefix(ctx, HabitCachePrefix(3))
	assert.EqualValues(t, 2, CacheVersion(ctx, 3))
}

func TestCacheWithoutRedisIsANoop(t *testing.T) {
	prev := redisClient
	SetRedis(nil)
	t.Cleanup(func() { SetRedis(prev) })

	ctx := context.Background()
	CacheSetBytes(ctx, "k", []byte("v"), 0)
	_, ok := CacheGetBytes(ctx, "k")
	assert.False(t, ok)
	BumpCacheVersion(ctx, 1)
	assert.Zero(t, CacheVersion(ctx, 1))
}
