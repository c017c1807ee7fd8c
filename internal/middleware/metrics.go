package middleware

import (
	"time"

	"github.com/GoSTEAN/velo-sub001/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsMiddleware creates a middleware that tracks request metrics.
// Responses below 500 count as successful: a 4xx is the service working.
func MetricsMiddleware(metricsCollector *metrics.MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		metricsCollector.RecordRequest()

		c.Next()

		metricsCollector.RecordRequestComplete(time.Since(startTime), c.Writer.Status() < 500)
	}
}
