package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute labels requests that hit no registered route, so that
// scanners probing random URLs cannot blow up label cardinality.
const unmatchedRoute = "unmatched"

// sizeBuckets covers recipe payloads from a single ingredient to a full
// list of recipes near the body limit.
var sizeBuckets = []float64{
	256, 1 << 10, 4 << 10, 16 << 10, 64 << 10, 256 << 10, 1 << 20, 4 << 20,
}

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recipes",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	// Status is left out to keep the histogram small.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "recipes",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds by method and route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "recipes",
			Name:      "http_requests_inflight",
			Help:      "HTTP requests currently being served.",
		},
	)

	httpReqSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "recipes",
			Name:      "http_request_size_bytes",
			Help:      "Declared request body size (Content-Length) by method and route.",
			Buckets:   sizeBuckets,
		},
		[]string{"method", "route"},
	)

	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "recipes",
			Name:      "http_response_size_bytes",
			Help:      "Response body size by method and route.",
			Buckets:   sizeBuckets,
		},
		[]string{"method", "route"},
	)

	idemReplays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recipes",
			Name:      "idempotent_replays_total",
			Help:      "Requests answered from a stored Idempotency-Key result.",
		},
		[]string{"route"},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recipes",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpReqSize, httpRespSize, idemReplays, rateLimited)
}

// Metrics instruments every request with Prometheus collectors in the
// "recipes" namespace. Mount it before Idempotency so replays are counted:
//
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
//
// The route label is the registered pattern (/api/v1/recipes/:id), or
// "unmatched" for 404s. Responses that wrote no body are not observed in the
// response size histogram, and requests without a Content-Length are not
// observed in the request size histogram.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		route := routeLabel(c)
		method := c.Request.Method

		httpReqs.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if n := c.Request.ContentLength; n > 0 {
			httpReqSize.WithLabelValues(method, route).Observe(float64(n))
		}
		if n := c.Writer.Size(); n >= 0 {
			httpRespSize.WithLabelValues(method, route).Observe(float64(n))
		}
		if IsReplay(c) {
			idemReplays.WithLabelValues(route).Inc()
		}
	}
}

func routeLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return unmatchedRoute
}
