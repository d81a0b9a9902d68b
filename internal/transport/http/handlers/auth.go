package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskvault/taskvault-api/internal/core/domain"
	"github.com/taskvault/taskvault-api/internal/infra/security"
	"github.com/taskvault/taskvault-api/internal/transport/http/middleware"
	"github.com/taskvault/taskvault-api/internal/usecase"
)

// AuthHandler exposes registration, login, and session endpoints.
type AuthHandler struct {
	auth         *usecase.AuthService
	registration *usecase.RegistrationService
	otps         *usecase.OTPManager
	cookies      *CookieHelper
	uploadsDir   string
	logger       *zap.Logger
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(
	auth *usecase.AuthService,
	registration *usecase.RegistrationService,
	otps *usecase.OTPManager,
	cookies *CookieHelper,
	uploadsDir string,
	log *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		registration: registration,
		otps:         otps,
		cookies:      cookies,
		uploadsDir:   uploadsDir,
		logger:       log,
	}
}

// RegisterRequest is the registration payload, accepted as JSON or as
// multipart form fields with an optional profileImage file.
type RegisterRequest struct {
	FirstName string `json:"firstName" form:"firstName"`
	LastName  string `json:"lastName" form:"lastName"`
	Email     string `json:"email" form:"email"`
	Password  string `json:"password" form:"password"`
	Phone     string `json:"phone" form:"phone"`
	City      string `json:"city" form:"city"`
	State     string `json:"state" form:"state"`
	Country   string `json:"country" form:"country"`
	Pincode   string `json:"pincode" form:"pincode"`
	Role      string `json:"role" form:"role"`
}

// Register creates an unverified account and emails a verification code.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	var imagePath string

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid registration payload")
			return
		}
		if file, err := c.FormFile("profileImage"); err == nil {
			path, saveErr := h.saveProfileImage(c, file)
			if saveErr != nil {
				h.logger.Warn("save profile image", zap.Error(saveErr))
				respondError(c, http.StatusBadRequest, "could not save profile image")
				return
			}
			imagePath = path
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid registration payload")
		return
	}

	user, code, err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Phone:     req.Phone,
		Address: domain.Address{
			City:    req.City,
			State:   req.State,
			Country: req.Country,
			Pincode: req.Pincode,
		},
		ProfileImage: imagePath,
		Role:         domain.Role(req.Role),
	})
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	extra := Response{"user": newUserView(user)}
	h.attachDevCode(extra, code)
	respond(c, http.StatusCreated, "Registration successful. Verify the code sent to your email.", extra)
}

// VerifyOTPRequest carries an email and the code to check.
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

// VerifyOTP confirms a registration code and logs the user in.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "email and otp are required")
		return
	}

	user, pair, err := h.registration.VerifyRegistration(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	h.cookies.SetAuthCookies(c, pair)
	respond(c, http.StatusOK, "Account verified", Response{
		"user":         newUserView(user),
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// LoginRequest is the email/password payload.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login validates credentials and opens a session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "email and password are required")
		return
	}

	user, pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	h.cookies.SetAuthCookies(c, pair)
	respond(c, http.StatusOK, "Login successful", Response{
		"user":         newUserView(user),
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// LoginOTPRequest drives the two-step login. Step "request" checks the
// password and sends a code; step "verify" exchanges the code for tokens.
type LoginOTPRequest struct {
	Step     string `json:"step" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
}

// LoginOTP handles both halves of the two-step login.
func (h *AuthHandler) LoginOTP(c *gin.Context) {
	var req LoginOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "step and email are required")
		return
	}

	switch req.Step {
	case "request":
		if req.Password == "" {
			respondError(c, http.StatusBadRequest, "password is required")
			return
		}
		code, err := h.auth.RequestLoginOTP(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			h.respondAuthError(c, err)
			return
		}
		extra := Response{}
		h.attachDevCode(extra, code)
		respond(c, http.StatusOK, "Login code sent to your email", extra)

	case "verify":
		if req.OTP == "" {
			respondError(c, http.StatusBadRequest, "otp is required")
			return
		}
		user, pair, err := h.auth.VerifyLoginOTP(c.Request.Context(), req.Email, req.OTP)
		if err != nil {
			h.respondAuthError(c, err)
			return
		}
		h.cookies.SetAuthCookies(c, pair)
		respond(c, http.StatusOK, "Login successful", Response{
			"user":         newUserView(user),
			"accessToken":  pair.AccessToken,
			"refreshToken": pair.RefreshToken,
		})

	default:
		respondError(c, http.StatusBadRequest, "step must be 'request' or 'verify'")
	}
}

// RefreshToken rotates the session using the refresh token from the body,
// cookie, or bearer header.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = c.ShouldBindJSON(&req)

	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		if extracted, ok := middleware.ExtractRefreshToken(c); ok {
			token = extracted
		}
	}
	if token == "" {
		respondError(c, http.StatusUnauthorized, "refresh token required")
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), token)
	if err != nil {
		h.cookies.ClearAuthCookies(c)
		h.respondAuthError(c, err)
		return
	}

	h.cookies.SetAuthCookies(c, pair)
	respond(c, http.StatusOK, "Token refreshed", Response{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// Logout ends the session. Cookies are cleared even when the token cannot be
// attributed, so the browser always ends up logged out.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.cookies.ClearAuthCookies(c)

	if token, ok := middleware.ExtractAccessToken(c); ok {
		if err := h.auth.Logout(c.Request.Context(), token); err != nil && !errors.Is(err, usecase.ErrInvalidAccessToken) {
			h.logger.Warn("logout", zap.Error(err))
		}
	}

	respond(c, http.StatusOK, "Logged out", nil)
}

// ResendOTPRequest names the purpose whose code should be reissued. The
// account is addressed by email or by the userId handed out at registration.
type ResendOTPRequest struct {
	Email   string `json:"email"`
	UserID  string `json:"userId"`
	Purpose string `json:"purpose" binding:"required"`
}

// ResendOTP discards the live code for the purpose and issues a fresh one.
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req ResendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "purpose is required")
		return
	}

	purpose := domain.OTPPurpose(req.Purpose)
	if !purpose.IsValid() {
		respondError(c, http.StatusBadRequest, "unknown otp purpose")
		return
	}

	var code string
	var err error
	switch {
	case req.Email != "":
		code, err = h.registration.ResendOTP(c.Request.Context(), purpose, req.Email)
	case req.UserID != "":
		code, err = h.registration.ResendOTPForUser(c.Request.Context(), purpose, req.UserID)
	default:
		respondError(c, http.StatusBadRequest, "email or userId is required")
		return
	}
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	extra := Response{}
	h.attachDevCode(extra, code)
	respond(c, http.StatusOK, "A new code has been sent to your email", extra)
}

// attachDevCode surfaces the plaintext code when no mail transport is wired.
func (h *AuthHandler) attachDevCode(extra Response, code string) {
	if code != "" && !h.otps.DeliveryConfigured() {
		extra["otp"] = code
	}
}

func (h *AuthHandler) saveProfileImage(c *gin.Context, file *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return "", fmt.Errorf("unsupported image type %q", ext)
	}

	name := fmt.Sprintf("%d-%s%s", time.Now().UnixNano(), uuid.NewString(), ext)
	path := filepath.Join(h.uploadsDir, name)
	if err := c.SaveUploadedFile(file, path); err != nil {
		return "", fmt.Errorf("save uploaded file: %w", err)
	}

	return path, nil
}

// respondAuthError maps usecase errors onto HTTP statuses without leaking
// which check failed beyond what the flow requires.
func (h *AuthHandler) respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, usecase.ErrAccountNotVerified):
		respondError(c, http.StatusForbidden, "Account not verified. Check your email for the verification code.")
	case errors.Is(err, usecase.ErrEmailTaken):
		respondError(c, http.StatusConflict, "Email is already registered")
	case errors.Is(err, usecase.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, usecase.ErrOTPInvalid):
		respondError(c, http.StatusBadRequest, "Invalid OTP")
	case errors.Is(err, usecase.ErrOTPExpired):
		respondError(c, http.StatusBadRequest, "OTP expired")
	case errors.Is(err, usecase.ErrOTPLocked):
		respondError(c, http.StatusTooManyRequests, "Too many failed attempts. Try again later.")
	case errors.Is(err, usecase.ErrInvalidRefreshToken):
		respondError(c, http.StatusUnauthorized, "Invalid refresh token")
	case errors.Is(err, usecase.ErrInvalidAccessToken):
		respondError(c, http.StatusUnauthorized, "Invalid access token")
	case errors.Is(err, security.ErrWeakPassword):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("auth request failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Something went wrong")
	}
}
