package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bank-api/internal/pkg/telemetry"
)

// PrometheusMiddleware records request duration, count, and in-flight gauge
// observations for every HTTP request.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		telemetry.HTTPRequestsInFlight.Inc()
		defer telemetry.HTTPRequestsInFlight.Dec()

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		method := c.Request.Method
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
		telemetry.HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	}
}
