package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheTTL = time.Minute
	cacheNamespace  = "homedash:"
)

// HabitCachePrefix is the key prefix of every cached read model owned by userID.
func HabitCachePrefix(userID uint) string {
	return fmt.Sprintf("%shabits:%d:", cacheNamespace, userID)
}

// SummaryCacheKey is where the dashboard summary of userID for day is cached
// while the user's cache version is version.
func SummaryCacheKey(userID uint, day string, version int64) string {
	return fmt.Sprintf("%ssummary:%s:v%d", HabitCachePrefix(userID), day, version)
}

// cacheVersionKey lives outside HabitCachePrefix so prefix invalidation keeps it.
func cacheVersionKey(userID uint) string {
	return fmt.Sprintf("%shabitver:%d", cacheNamespace, userID)
}

// CacheVersion returns the current cache version of userID, 0 when unset or
// when Redis is unavailable.
func CacheVersion(ctx context.Context, userID uint) int64 {
	rc := GetRedis()
	if rc == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	v, err := rc.Get(ctx, cacheVersionKey(userID)).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			Sugar.Warnf("cache version read failed user=%d err=%v", userID, err)
		}
		return 0
	}
	return v
}

// BumpCacheVersion moves userID to a new cache version. Entries keyed by an
// older version are never read again and expire with their TTL.
func BumpCacheVersion(ctx context.Context, userID uint) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Incr(ctx, cacheVersionKey(userID)).Err(); err != nil {
		Sugar.Warnf("cache version bump failed user=%d err=%v", userID, err)
	}
}

// CacheGetBytes returns cached bytes for a key from Redis.
func CacheGetBytes(ctx context.Context, key string) ([]byte, bool) {
	rc := GetRedis()
	if rc == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		Sugar.Debugf("cache get miss key=%s err=%v", key, err)
		return nil, false
	}
	return b, true
}

// CacheGetJSON decodes a cached JSON value into v and reports whether it was found.
func CacheGetJSON(ctx context.Context, key string, v interface{}) bool {
	b, ok := CacheGetBytes(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		Sugar.Warnf("cache decode failed key=%s err=%v", key, err)
		return false
	}
	return true
}

// CacheSetBytes stores bytes; ttl <= 0 uses the default TTL.
func CacheSetBytes(ctx context.Context, key string, b []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Set(ctx, key, b, ttl).Err(); err != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// CacheSetJSON marshals v and stores JSON bytes.
func CacheSetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	CacheSetBytes(ctx, key, b, ttl)
}

// InvalidateByPrefix deletes keys that match the given prefix using SCAN.
func InvalidateByPrefix(ctx context.Context, prefix string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // limit rounds to avoid long loops
		keys, cur, err := rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			Sugar.Warnf("cache scan failed prefix=%s err=%v", prefix, err)
			break
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := rc.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			break
		}
	}
}
