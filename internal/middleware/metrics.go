package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/accountd/pkg/metrics"
)

// unmatchedRoute labels requests that hit no route, so probing paths cannot create series.
const unmatchedRoute = "unmatched"

// Metrics observes latency per route template and counts requests by status class.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		status := c.Writer.Status()

		metrics.APILatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, statusClass(status)).Inc()
	}
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
