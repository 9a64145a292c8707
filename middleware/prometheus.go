package middleware

import (
	"strconv"
	"time"

	"client-data-service/monitoring"

	"github.com/gin-gonic/gin"
)

func PrometheusMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath() // шаблон маршрута, не сырой URL
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		monitoring.RequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()

		monitoring.RequestDuration.WithLabelValues(
			c.Request.Method,
			path,
		).Observe(duration)
	}
}
