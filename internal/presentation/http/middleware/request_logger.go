package middleware

import (
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// RequestLogger logs every request on the HTTP channel with its outcome and
// duration.
func RequestLogger(logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log := logger.HTTP()
		status := c.Writer.Status()
		switch {
		case status >= 500:
			log.Error("Request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "status", status, "duration", duration)
		case status >= 400:
			log.Warn("Request rejected", "method", c.Request.Method, "path", c.Request.URL.Path, "status", status, "duration", duration)
		default:
			log.Debug("Request served", "method", c.Request.Method, "path", c.Request.URL.Path, "status", status, "duration", duration)
		}
	}
}
