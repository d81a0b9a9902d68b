package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/taskvault/taskvault-api/internal/infra/security"
)

// Session cookie names, shared with the handlers that set them.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ExtractAccessToken locates the access token on a request: the
// Authorization bearer header wins, then the named cookie, then a manual
// parse of the raw Cookie header for clients that mangle cookie encoding.
func ExtractAccessToken(c *gin.Context) (string, bool) {
	return extractToken(c, AccessTokenCookie)
}

// ExtractRefreshToken locates the refresh token with the same fallback order.
func ExtractRefreshToken(c *gin.Context) (string, bool) {
	return extractToken(c, RefreshTokenCookie)
}

func extractToken(c *gin.Context, cookieName string) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token, true
			}
		}
	}

	if token, err := c.Cookie(cookieName); err == nil {
		if token = strings.TrimSpace(token); token != "" {
			return token, true
		}
	}

	if token := tokenFromRawCookieHeader(c.GetHeader("Cookie"), cookieName); token != "" {
		return token, true
	}

	return "", false
}

// tokenFromRawCookieHeader splits the raw Cookie header by hand. Some clients
// send cookie values the standard parser rejects.
func tokenFromRawCookieHeader(header, name string) string {
	if header == "" {
		return ""
	}

	for _, pair := range strings.Split(header, ";") {
		pair = strings.TrimSpace(pair)
		key, value, found := strings.Cut(pair, "=")
		if !found || key != name {
			continue
		}
		return strings.Trim(strings.TrimSpace(value), `"`)
	}

	return ""
}

// OptionalAuth resolves the user from an access token when the request
// carries a valid one, and lets anonymous or bad-token requests through
// untouched. Routes that serve both logged-in and logged-out callers use
// this; the handler decides what anonymity means for each variant.
func OptionalAuth(tokens *security.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := ExtractAccessToken(c); ok {
			if userID, err := tokens.VerifyAccessToken(token); err == nil {
				c.Set(UserIDKey, userID)
			}
		}

		c.Next()
	}
}

// RequireAuth validates the access token and stores the user ID in the context.
func RequireAuth(tokens *security.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := ExtractAccessToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				envelope{Success: false, Message: "authentication required"})
			return
		}

		userID, err := tokens.VerifyAccessToken(token)
		if err != nil {
			message := "invalid access token"
			if errors.Is(err, security.ErrTokenExpired) {
				message = "access token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				envelope{Success: false, Message: message})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// GetAuthenticatedUserID retrieves the user ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}

	if id, ok := userID.(string); ok {
		return id, true
	}

	return "", false
}
