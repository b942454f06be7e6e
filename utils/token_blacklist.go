package utils

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"
)

// revokedTokens mirrors revocations in process so logout still holds when
// Redis is off or unreachable.
var revokedTokens = struct {
	sync.Mutex
	until map[string]time.Time
}{until: map[string]time.Time{}}

func revocationKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "moodbloom:revoked:" + hex.EncodeToString(sum[:])
}

// BlacklistToken revokes a token until expiresAt, its natural expiry.
func BlacklistToken(token string, expiresAt time.Time) {
	now := time.Now()
	if !expiresAt.After(now) {
		return
	}
	key := revocationKey(token)

	revokedTokens.Lock()
	for k, until := range revokedTokens.until {
		if now.After(until) {
			delete(revokedTokens.until, k)
		}
	}
	revokedTokens.until[key] = expiresAt
	revokedTokens.Unlock()

	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
		defer cancel()
		if err := rc.Set(ctx, key, 1, expiresAt.Sub(now)).Err(); err != nil {
			Logger.Warn("token revocation not shared", zap.Error(err))
		}
	}
}

// IsTokenBlacklisted reports whether token was revoked and has not expired yet.
func IsTokenBlacklisted(token string) bool {
	key := revocationKey(token)

	revokedTokens.Lock()
	until, ok := revokedTokens.until[key]
	revokedTokens.Unlock()
	if ok && time.Now().Before(until) {
		return true
	}

	rc := GetRedis()
	if rc == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	n, err := rc.Exists(ctx, key).Result()
	return err == nil && n > 0
}
