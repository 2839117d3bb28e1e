package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"livepoll/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequestIDMiddleware tags every request with an ID, honoring one the
// caller already supplied, and threads it through the context so log
// lines can be correlated.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = newRequestID()
		}
		c.Writer.Header().Set("X-Request-Id", requestID)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIdKey, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newRequestID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
