package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/moodbloom/config"
	"github.com/cppla/moodbloom/utils"
)

// limiterIdle is how long an unused bucket survives before it is swept.
const limiterIdle = 5 * time.Minute

type bucket struct {
	*rate.Limiter
	lastSeen time.Time
}

// limiterSet keeps one token bucket per client key.
type limiterSet struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*bucket
	swept   time.Time
}

func newLimiterSet(perMinute int) *limiterSet {
	if perMinute < 1 {
		perMinute = 1
	}
	burst := perMinute / 2
	if burst < 1 {
		burst = 1
	}
	return &limiterSet{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		buckets: map[string]*bucket{},
	}
}

// allow takes one token for key. When the bucket is empty it returns the
// wait until the next token.
func (s *limiterSet) allow(key string, now time.Time) (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.swept) > limiterIdle {
		for k, b := range s.buckets {
			if now.Sub(b.lastSeen) > limiterIdle {
				delete(s.buckets, k)
			}
		}
		s.swept = now
	}

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{Limiter: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[key] = b
	}
	b.lastSeen = now

	r := b.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// clientKey identifies the caller: the authenticated user when auth ran
// earlier in the chain, the client IP otherwise.
func clientKey(ctx *gin.Context) string {
	if v, ok := ctx.Get(ContextUserIDKey); ok {
		if id, ok := v.(uint); ok {
			return fmt.Sprintf("user:%d", id)
		}
	}
	return "ip:" + ctx.ClientIP()
}

// RateLimitMiddleware throttles each client to RateLimitPerMinute requests
// with a burst of half that.
func RateLimitMiddleware() gin.HandlerFunc {
	set := newLimiterSet(config.Get().RateLimitPerMinute)

	return func(ctx *gin.Context) {
		ok, wait := set.allow(clientKey(ctx), time.Now())
		if !ok {
			ctx.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
