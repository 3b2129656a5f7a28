package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"legal-analyzer/internal/shared/server/respond"
)

const (
	defaultRateLimitKeys = 10000
	defaultBucketIdleTTL = 30 * time.Minute
)

// RateLimitRule is a token bucket refilled at Rate tokens per second.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

// PerMinute builds a rule from a requests-per-minute figure.
func PerMinute(perMinute float64, burst int) RateLimitRule {
	return RateLimitRule{Rate: perMinute / 60.0, Burst: burst}
}

func (r RateLimitRule) disabled() bool {
	return r.Rate <= 0 || r.Burst <= 0
}

// RateLimiter keeps one token bucket per client key. Idle buckets are
// evicted after their TTL, which is the same as a full refill.
type RateLimiter struct {
	mu      sync.Mutex
	buckets *expirable.LRU[string, rateBucket]
	now     func() time.Time
}

type rateBucket struct {
	tokens float64
	at     time.Time
}

func (b rateBucket) refill(now time.Time, rule RateLimitRule) rateBucket {
	if dt := now.Sub(b.at); dt > 0 {
		b.tokens = math.Min(float64(rule.Burst), b.tokens+dt.Seconds()*rule.Rate)
		b.at = now
	}
	return b
}

// NewRateLimiter returns an empty limiter. now defaults to time.Now.
func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		buckets: expirable.NewLRU[string, rateBucket](defaultRateLimitKeys, nil, defaultBucketIdleTTL),
		now:     now,
	}
}

// RateLimit rejects requests from a client IP once its bucket in group is
// empty, answering 429 with a Retry-After header.
func RateLimit(limiter *RateLimiter, group string, rule RateLimitRule) gin.HandlerFunc {
	if limiter == nil {
		limiter = NewRateLimiter(nil)
	}
	return func(c *gin.Context) {
		ok, wait := limiter.Allow(group+":"+c.ClientIP(), rule)
		if ok {
			c.Next()
			return
		}
		waitMs := wait.Milliseconds()
		if waitMs <= 0 {
			waitMs = 1000
		}
		c.Header("Retry-After", strconv.FormatInt((waitMs+999)/1000, 10))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "Too many requests, slow down", gin.H{
			"retryAfterMs": waitMs,
		})
	}
}

// Allow takes a token for key, or reports how long until one is available.
func (l *RateLimiter) Allow(key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil || rule.disabled() {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	b, found := l.buckets.Get(key)
	if !found {
		b = rateBucket{tokens: float64(rule.Burst), at: now}
	}
	b = b.refill(now, rule)
	allowed := b.tokens >= 1
	if allowed {
		b.tokens--
	}
	l.buckets.Add(key, b)
	if allowed {
		return true, 0
	}
	return false, time.Duration(math.Ceil((1-b.tokens)/rule.Rate*1000)) * time.Millisecond
}
