// Package middleware holds the Gin middleware mounted by the HTTP router:
// request ids, access logging and panic recovery, security headers,
// Prometheus metrics, rate limiting and Idempotency-Key handling.
//
// Middleware share state through gin context keys declared in this file;
// handlers read it back through the exported accessors (UserID,
// GetIdempotencyKey, IsReplay, LoggerFrom, RequestIDFrom).
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderIdempotencyKey lets a client retry a create without duplicating it.
	HeaderIdempotencyKey = "Idempotency-Key"

	// HeaderUserID carries an optional caller identity. Nothing authenticates
	// it; it only partitions idempotency keys and rate-limit buckets.
	HeaderUserID = "X-User-ID"

	// AnonymousUser stands in when a request names no caller.
	AnonymousUser = "anonymous"

	defaultIdemKeyLen = 200
)

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
	ctxKeyUserID     = "userID"
)

var defaultIdemKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~:\-]+$`)

// GetIdempotencyKey returns the key accepted by Idempotency, if any.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}

// IsReplay reports whether Idempotency found a live record for this request.
func IsReplay(c *gin.Context) bool {
	return c.GetBool(ctxKeyIdemReplay)
}

// UserID returns the caller identity: a value set upstream under "userID",
// else the X-User-ID header, else AnonymousUser.
func UserID(c *gin.Context) string {
	if s := c.GetString(ctxKeyUserID); s != "" {
		return s
	}
	if s := strings.TrimSpace(c.GetHeader(HeaderUserID)); s != "" {
		return s
	}
	return AnonymousUser
}

// IdempotencyScope names the operation a key belongs to, e.g.
// "POST /api/v1/recipes". Unmatched routes fall back to the raw path.
func IdempotencyScope(c *gin.Context) string {
	p := c.FullPath()
	if p == "" {
		p = c.Request.URL.Path
	}
	return c.Request.Method + " " + p
}

// IdempotencyLookup reports whether a live record exists for (userID, scope,
// key) at now.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error)

// IdempotencyOptions configures Idempotency.
type IdempotencyOptions struct {
	// MaxLen caps key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts key characters; nil means ^[A-Za-z0-9._~:\-]+$.
	Pattern *regexp.Regexp
	// Lookup detects replays. Nil disables detection; the key is still
	// validated and exposed.
	Lookup IdempotencyLookup
	// Now is the clock handed to Lookup. Nil means time.Now in UTC.
	Now func() time.Time
}

// Idempotency validates the Idempotency-Key header and, when Lookup finds a
// live record, flags the request as a replay. Replays skip the rate limiter
// and are counted in metrics and access logs; the handler serves the stored
// result.
//
// Requests without the header pass untouched. A malformed key is rejected
// with 400 bad_request. Lookup errors are logged and treated as a miss.
func Idempotency(opts IdempotencyOptions) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultIdemKeyLen
	}
	pattern := opts.Pattern
	if pattern == nil {
		pattern = defaultIdemKeyPattern
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pattern.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "bad_request",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if opts.Lookup != nil {
			found, err := opts.Lookup(c.Request.Context(), UserID(c), IdempotencyScope(c), key, now())
			switch {
			case err != nil:
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			case found:
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}
