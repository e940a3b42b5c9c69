package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hivedesk/onboarding/pkg/logger"
)

// RequestIDHeader is echoed on every response
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds client supplied request IDs
const maxRequestIDLen = 128

// RequestID reuses the caller's X-Request-ID when it is a plain token and
// generates one otherwise. The id lands in the gin context, the request
// context used for logging, and the response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}

		c.Header(RequestIDHeader, requestID)
		c.Set("request_id", requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// validRequestID accepts ids safe to copy into log lines and headers
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return false
		}
	}
	return true
}

// GetRequestID gets the request ID from gin context
func GetRequestID(c *gin.Context) string {
	return getString(c, "request_id")
}
