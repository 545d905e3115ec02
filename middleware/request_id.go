package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	applogger "attendance-sheet-go/logger"
)

const (
	RequestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
	requestIDMaxLen = 64
)

// RequestID tags each request with an id taken from X-Request-ID or freshly generated.
// The id is echoed in the response header and carried on the request context,
// so sheet renders started by the request log under it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > requestIDMaxLen {
			rid = uuid.NewString()
		}

		c.Set(RequestIDKey, rid)
		c.Request = c.Request.WithContext(applogger.WithRequestID(c.Request.Context(), rid))
		c.Writer.Header().Set(requestIDHeader, rid)

		c.Next()
	}
}
