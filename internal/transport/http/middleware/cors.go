package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS answers cross-origin requests from browsers holding session cookies.
// Cookie credentials rule out a literal "*" in Access-Control-Allow-Origin,
// so the matched origin is echoed back instead; a "*" entry in the allow
// list means every origin matches but is still echoed. Responses carry
// Vary: Origin because the allow header differs per caller.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	allowAny := false
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			allowAny = true
		default:
			allowed[origin] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		headers := c.Writer.Header()
		headers.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		_, match := allowed[origin]
		if origin != "" && (match || allowAny) {
			headers.Set("Access-Control-Allow-Origin", origin)
			headers.Set("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			headers.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			headers.Set("Access-Control-Allow-Headers", "Origin,Content-Type,Accept,Authorization,X-Request-ID")
			headers.Set("Access-Control-Max-Age", "43200")

			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
