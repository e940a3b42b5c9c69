package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hivedesk/onboarding/pkg/logger"
)

// RequestLogger writes one line per request. The request id and the caller
// come from the request context; health probes log at debug.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if query := c.Request.URL.RawQuery; query != "" {
			attrs = append(attrs, "query", query)
		}
		if id := c.Param("id"); id != "" {
			attrs = append(attrs, "document_id", id)
		}
		if c.Request.ContentLength > 0 {
			attrs = append(attrs, "bytes_in", c.Request.ContentLength)
		}
		if size := c.Writer.Size(); size > 0 {
			attrs = append(attrs, "bytes_out", size)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		case c.FullPath() == "/health":
			level = slog.LevelDebug
		}
		logger.Log(c.Request.Context(), level, "request completed", attrs...)
	}
}
