package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorhub_portal_http_requests_total",
		Help: "Portal HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tutorhub_portal_http_request_duration_seconds",
		Help:    "Portal HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// Metrics records every request. Routes are labelled by the name set with
// SetRouteName, falling back to the gin route pattern.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.GetString(contextKeyRouteName)
		if route == "" {
			route = c.FullPath()
		}
		if route == "" {
			route = "unmatched"
		}

		httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

const contextKeyRouteName = "route_name"

func SetRouteName(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextKeyRouteName, name)
		c.Next()
	}
}
