package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"finbpo/pkg/logger"
)

// Logger middleware logs HTTP requests with timing and status. It also puts
// log on the request context, so logger.Info(ctx, ...) below uses it.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), log))

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		entry := log.WithContext(c.Request.Context())
		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.Last().Error())
		}
		if status >= 500 {
			entry.Warnw("http request", fields...)
			return
		}
		entry.Infow("http request", fields...)
	}
}
