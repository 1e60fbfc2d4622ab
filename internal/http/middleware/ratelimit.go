package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to its rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by X-User-ID ("user:<id>") and falls back to
// the client IP ("ip:<addr>") for anonymous callers.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if uid := UserID(c); uid != AnonymousUser {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

// RateLimitOptions configures NewRateLimiter.
type RateLimitOptions struct {
	// RPS is the refill rate in tokens per second. 0 only ever allows the
	// initial burst.
	RPS float64
	// Burst is the bucket size; values < 1 become 1.
	Burst int
	// WriteCost is what a create, update or delete spends. Reads and
	// searches spend one token. Values < 1 become 1; values above Burst are
	// capped at Burst.
	WriteCost int
	// Key selects the bucket; defaults to KeyByUserOrIP.
	Key keyFunc
	// IdleTTL evicts buckets unused for this long; defaults to 10 minutes.
	IdleTTL time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local token-bucket limiter with one bucket per
// caller. Replicas each enforce their own budget. Safe for concurrent use.
type RateLimiter struct {
	limit     rate.Limit
	burst     int
	writeCost int
	keyFn     keyFunc
	ttl       time.Duration

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

// NewRateLimiter builds a RateLimiter from opt; install it with Handler.
func NewRateLimiter(opt RateLimitOptions) *RateLimiter {
	rl := &RateLimiter{
		limit:     rate.Limit(opt.RPS),
		burst:     max(opt.Burst, 1),
		writeCost: max(opt.WriteCost, 1),
		keyFn:     opt.Key,
		ttl:       opt.IdleTTL,
		visitors:  make(map[string]*visitor),
		lastSweep: time.Now(),
	}
	rl.writeCost = min(rl.writeCost, rl.burst)
	if rl.keyFn == nil {
		rl.keyFn = KeyByUserOrIP()
	}
	if rl.ttl <= 0 {
		rl.ttl = 10 * time.Minute
	}
	return rl
}

// getVisitor returns the bucket for key, creating it if needed. Idle
// buckets are swept at most once per TTL, before the lookup, so a stale
// bucket is replaced rather than refreshed.
func (rl *RateLimiter) getVisitor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.ttl {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.limit, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// cost is the number of tokens a request spends. Search is a POST but does
// not modify anything.
func (rl *RateLimiter) cost(c *gin.Context) int {
	switch c.Request.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		if strings.HasSuffix(c.FullPath(), "/search") {
			return 1
		}
		return rl.writeCost
	}
	return 1
}

// IsRateBypass reports whether Idempotency marked the request as a replay,
// which does not consume tokens.
func IsRateBypass(c *gin.Context) bool {
	return c.GetBool(ctxKeyRateBypass)
}

// Handler enforces the limits. A rejected request gets
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: <seconds until enough tokens are available>
//	{"request_id": "...", "code": "too_many_requests", "message": "rate limit exceeded"}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		now := time.Now()
		lim := rl.getVisitor(rl.keyFn(c), now)

		wait := time.Minute
		res := lim.ReserveN(now, rl.cost(c))
		if res.OK() {
			d := res.DelayFrom(now)
			if d == 0 {
				c.Next()
				return
			}
			res.CancelAt(now)
			if d < rate.InfDuration {
				wait = d
			}
		}

		rateLimited.WithLabelValues(routeLabel(c)).Inc()
		c.Header("Retry-After", retryAfter(wait))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}

// retryAfter renders d as whole seconds, rounded up, at least 1.
func retryAfter(d time.Duration) string {
	s := int64(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return strconv.FormatInt(s, 10)
}
