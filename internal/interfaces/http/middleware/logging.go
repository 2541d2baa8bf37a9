package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/checkout/internal/shared/logger"
)

// quietPrefixes are routes logged only when they fail.
var quietPrefixes = []string{"/health", "/swagger/"}

// Logger logs every finished request keyed by its correlation id. Server
// errors log at error level and client errors at warn.
func Logger(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		if status < 400 && quiet(c.Request.URL.Path) {
			return
		}

		fields := []any{
			"request_id", c.GetString(RequestIDKey),
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if version, ok := c.Get(ContextKeyAPIVersion); ok {
			fields = append(fields, "api_version", version)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.Last().Err)
		}

		switch {
		case status >= 500:
			log.Errorw("checkout request failed", fields...)
		case status >= 400:
			log.Warnw("checkout request rejected", fields...)
		default:
			log.Infow("checkout request served", fields...)
		}
	}
}

func quiet(path string) bool {
	for _, prefix := range quietPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
