package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Victor-Weng/sunset-spot/internal/logs"
	"github.com/Victor-Weng/sunset-spot/internal/metrics"
)

// RequestLogger records every request's latency and writes one log line per
// request. Handlers log their own domain outcome separately.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).Observe(elapsed.Seconds())

		level := "DEBUG"
		switch {
		case status >= 500:
			level = "ERROR"
		case status >= 400:
			level = "INFO"
		}
		logs.LogJSON(level, "Request served", map[string]interface{}{
			"route":   route,
			"method":  c.Request.Method,
			"status":  status,
			"latency": elapsed.String(),
			"userID":  c.Query("user_id"),
		})
	}
}
