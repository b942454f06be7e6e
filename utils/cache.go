package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheOpTimeout = 2 * time.Second

// Cached views live under these keys. Everything cached for one user shares
// CacheUserPrefix so a write can drop all of it at once.
const (
	cacheNamespace       = "moodbloom:cache:"
	CacheCommunityPrefix = cacheNamespace + "community:"
	CacheCommunityList   = CacheCommunityPrefix + "groups"
)

// CacheUserPrefix is the prefix of all cached views of one user.
func CacheUserPrefix(userID uint) string {
	return fmt.Sprintf("%suser:%d:", cacheNamespace, userID)
}

// CacheDashboardKey holds the dashboard stats of one user.
func CacheDashboardKey(userID uint) string {
	return CacheUserPrefix(userID) + "dashboard"
}

// Cached returns the JSON value stored under key, or calls load and stores
// its result for ttl. Without Redis it always calls load. Cache failures are
// logged and never returned.
func Cached[T any](ctx context.Context, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	rc := GetRedis()
	if rc == nil {
		return load()
	}

	rctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	b, err := rc.Get(rctx, key).Bytes()
	cancel()
	switch {
	case err == nil:
		var v T
		if json.Unmarshal(b, &v) == nil {
			return v, nil
		}
		Logger.Warn("undecodable cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		Logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if b, err := json.Marshal(v); err == nil {
		wctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
		if err := rc.Set(wctx, key, b, ttl).Err(); err != nil {
			Logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
		cancel()
	}
	return v, nil
}

// Invalidate drops every cached key under the given prefixes.
func Invalidate(prefixes ...string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	for _, prefix := range prefixes {
		var keys []string
		iter := rc.Scan(ctx, 0, prefix+"*", 500).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			Logger.Warn("cache scan failed", zap.String("prefix", prefix), zap.Error(err))
			continue
		}
		if len(keys) == 0 {
			continue
		}
		if err := rc.Unlink(ctx, keys...).Err(); err != nil {
			Logger.Warn("cache invalidate failed", zap.String("prefix", prefix), zap.Error(err))
		}
	}
}
