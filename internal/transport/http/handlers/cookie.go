package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskvault/taskvault-api/internal/infra/config"
	"github.com/taskvault/taskvault-api/internal/infra/security"
	"github.com/taskvault/taskvault-api/internal/transport/http/middleware"
	"github.com/taskvault/taskvault-api/internal/usecase"
)

// CookieHelper manages the session cookies. Cookie lifetimes mirror the token
// lifetimes, so the browser drops a cookie at the same moment its token stops
// verifying.
type CookieHelper struct {
	cfg    config.CookieSettings
	secure bool
}

// NewCookieHelper creates a cookie helper. secure marks cookies Secure, used
// in production where the service sits behind TLS.
func NewCookieHelper(cfg config.CookieSettings, secure bool) *CookieHelper {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	return &CookieHelper{cfg: cfg, secure: secure}
}

// SetAuthCookies sets both session cookies from a freshly issued pair.
func (h *CookieHelper) SetAuthCookies(c *gin.Context, pair *usecase.TokenPair) {
	h.setCookie(c, middleware.AccessTokenCookie, pair.AccessToken, int(security.AccessTokenTTL.Seconds()))
	h.setCookie(c, middleware.RefreshTokenCookie, pair.RefreshToken, int(security.RefreshTokenTTL.Seconds()))
}

// ClearAuthCookies removes both session cookies.
func (h *CookieHelper) ClearAuthCookies(c *gin.Context) {
	h.setCookie(c, middleware.AccessTokenCookie, "", -1)
	h.setCookie(c, middleware.RefreshTokenCookie, "", -1)
}

func (h *CookieHelper) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		name,
		value,
		maxAge,
		h.cfg.Path,
		h.cfg.Domain,
		h.secure,
		true, // httpOnly, always for session cookies
	)
}
