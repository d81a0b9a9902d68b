package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/taskvault/taskvault-api/internal/infra/logger"
)

const (
	requestIDHeader = "X-Request-ID"

	// Inbound ids longer than this are replaced rather than echoed, so a
	// client cannot smuggle arbitrary payloads into the log stream.
	maxRequestIDLength = 64
)

// RequestID tags each request with a correlation identifier. A sane inbound
// X-Request-ID is reused so ids survive proxy hops; anything missing or
// oversized is replaced with a fresh UUID. The id is echoed on the response
// and stored on the request context for the access log.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}

		c.Writer.Header().Set(requestIDHeader, id)
		c.Request = c.Request.WithContext(
			logger.ContextWithRequestID(c.Request.Context(), id))

		c.Next()
	}
}
