package middleware

import (
	"net/http"
	"runtime/debug"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	loggerKey         = "logger"
	maxQueryLogLength = 2048
)

// AccessLogOptions configures AccessLog.
type AccessLogOptions struct {
	// MaskHeaders are logged as "[REDACTED]", in addition to Authorization,
	// Cookie and Set-Cookie.
	MaskHeaders []string
	// Headers adds the scrubbed request headers to every line. Meant for
	// debug mode; the lines get large.
	Headers bool
}

// AccessLog attaches a request-scoped logger and writes one structured line
// per request once the handler chain returns.
//
// The scoped logger carries request_id, user_id, method and route; it is
// returned by LoggerFrom in handlers and by log.Ctx(ctx) in services. The
// access line adds status, latency, sizes, the scrubbed query, the recipe id
// for /recipes/:id routes and whether the response was an idempotent replay.
// Level is error for 5xx or collected gin errors, warn for 4xx, info
// otherwise.
//
// Mount after RequestID so lines carry the correlation id.
func AccessLog(opts AccessLogOptions) gin.HandlerFunc {
	scrub := newScrubber(opts.MaskHeaders)

	return func(c *gin.Context) {
		start := time.Now()
		route := routeLabel(c)

		l := log.With().
			Str("request_id", RequestIDFrom(c)).
			Str("user_id", UserID(c)).
			Str("method", c.Request.Method).
			Str("route", route).
			Logger()
		attachLogger(c, &l)

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case len(c.Errors) > 0:
			ev = l.Error().Str("errors", c.Errors.String())
		case status >= http.StatusInternalServerError:
			ev = l.Error()
		case status >= http.StatusBadRequest:
			ev = l.Warn()
		default:
			ev = l.Info()
		}

		if id := c.Param("id"); id != "" {
			ev = ev.Str("recipe_id", id)
		}
		if q := c.Request.URL.RawQuery; q != "" {
			ev = ev.Str("query", scrub.text(truncate(q, maxQueryLogLength)))
		}
		if IsReplay(c) {
			ev = ev.Bool("replayed", true)
		}
		if opts.Headers {
			ev = ev.Interface("headers", scrub.headers(c.Request.Header))
		}

		ev.Str("path", scrub.text(c.Request.URL.Path)).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int64("bytes_in", c.Request.ContentLength).
			Int("bytes_out", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Msg("http_request")
	}
}

// Recovery turns a panic into a JSON 500 carrying the request id and logs
// the stack with the request-scoped logger. Mount after AccessLog.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := RequestIDFrom(c)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// attachLogger stores l in the gin context and in the request context so
// log.Ctx(ctx) in services resolves to the same logger.
func attachLogger(c *gin.Context, l *zerolog.Logger) {
	c.Set(loggerKey, l)
	c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
}

// LoggerFrom returns the request-scoped logger, or one carrying only the
// request id when AccessLog is not mounted. Never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Str("request_id", RequestIDFrom(c)).Logger()
	return &l
}

// truncate caps s at limit bytes without splitting a rune and marks the cut
// with an ellipsis. limit <= 0 disables it.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
