package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/muazhazali/lepakmasjid/internal/telemetry"
)

// unmatchedRoute labels requests that matched no route, keeping label
// cardinality bounded.
const unmatchedRoute = "<no-route>"

// MetricsMiddleware records http_requests_total and
// http_request_duration_seconds. The path label is the gin route template
// (/api/v1/mosques/:id), never the raw URL. Register it after Recovery and
// RequestIDMiddleware so error statuses are captured.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		method := c.Request.Method
		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
