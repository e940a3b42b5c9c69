package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/hivedesk/onboarding/pkg/logger"
)

// Recovery turns a handler panic into the standard 500 envelope. A client
// that hangs up during a download surfaces as a write error on a dead
// connection; that is logged and nothing more is written.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			ctx := c.Request.Context()
			if clientGone(rec) {
				logger.Warn(ctx, "client disconnected",
					"path", c.Request.URL.Path,
					"document_id", c.Param("id"),
					"error", rec,
				)
				c.Abort()
				return
			}

			logger.Error(ctx, "panic recovered",
				"error", rec,
				"method", c.Request.Method,
				"route", c.FullPath(),
				"document_id", c.Param("id"),
				"stack", string(debug.Stack()),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success":    false,
				"error":      "Internal server error",
				"request_id": GetRequestID(c),
			})
		}()

		c.Next()
	}
}

func clientGone(rec any) bool {
	err, ok := rec.(error)
	if !ok {
		return false
	}
	return errors.Is(err, http.ErrAbortHandler) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}
