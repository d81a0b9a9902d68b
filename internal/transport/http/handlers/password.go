package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskvault/taskvault-api/internal/infra/security"
	"github.com/taskvault/taskvault-api/internal/transport/http/middleware"
	"github.com/taskvault/taskvault-api/internal/usecase"
)

// PasswordHandler covers the forgot-password flow and authenticated
// password changes.
type PasswordHandler struct {
	resets *usecase.PasswordResetService
	otps   *usecase.OTPManager
	logger *zap.Logger
}

func NewPasswordHandler(resets *usecase.PasswordResetService, otps *usecase.OTPManager, log *zap.Logger) *PasswordHandler {
	return &PasswordHandler{resets: resets, otps: otps, logger: log}
}

// ForgotPassword sends a reset code. The response is identical whether or not
// the email is registered.
func (h *PasswordHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "email is required")
		return
	}

	code, err := h.resets.RequestReset(c.Request.Context(), req.Email)
	if err != nil {
		h.respondResetError(c, err)
		return
	}

	extra := Response{}
	if code != "" && !h.otps.DeliveryConfigured() {
		extra["otp"] = code
	}
	respond(c, http.StatusOK, "If the email is registered, a reset code has been sent", extra)
}

// VerifyResetOTPRequest addresses the account by email or by userId.
type VerifyResetOTPRequest struct {
	Email  string `json:"email"`
	UserID string `json:"userId"`
	OTP    string `json:"otp" binding:"required"`
}

// VerifyForgotPasswordOTP checks the reset code and hands back a short-lived
// reset token. No session tokens are issued here.
func (h *PasswordHandler) VerifyForgotPasswordOTP(c *gin.Context) {
	var req VerifyResetOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "otp is required")
		return
	}

	var grant string
	var err error
	switch {
	case req.Email != "":
		grant, err = h.resets.VerifyResetOTP(c.Request.Context(), req.Email, req.OTP)
	case req.UserID != "":
		grant, err = h.resets.VerifyResetOTPForUser(c.Request.Context(), req.UserID, req.OTP)
	default:
		respondError(c, http.StatusBadRequest, "email or userId is required")
		return
	}
	if err != nil {
		h.respondResetError(c, err)
		return
	}

	respond(c, http.StatusOK, "Code verified. Use the reset token to set a new password.", Response{
		"resetToken": grant,
	})
}

// ChangePasswordRequest serves both variants: reset-token based for the
// forgot flow, current-password based for a logged-in change.
type ChangePasswordRequest struct {
	Email           string `json:"email"`
	ResetToken      string `json:"resetToken"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

// ChangePassword sets a new password and revokes the stored refresh token.
func (h *PasswordHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "newPassword and confirmPassword are required")
		return
	}

	if req.NewPassword != req.ConfirmPassword {
		respondError(c, http.StatusBadRequest, "Passwords do not match")
		return
	}

	switch {
	case req.ResetToken != "":
		if req.Email == "" {
			respondError(c, http.StatusBadRequest, "email is required with a reset token")
			return
		}
		if err := h.resets.ResetPassword(c.Request.Context(), req.Email, req.ResetToken, req.NewPassword); err != nil {
			h.respondResetError(c, err)
			return
		}

	case req.CurrentPassword != "":
		userID, ok := middleware.GetAuthenticatedUserID(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if err := h.resets.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
			h.respondResetError(c, err)
			return
		}

	default:
		respondError(c, http.StatusBadRequest, "resetToken or currentPassword is required")
		return
	}

	respond(c, http.StatusOK, "Password changed. Please log in again.", nil)
}

func (h *PasswordHandler) respondResetError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, usecase.ErrOTPInvalid):
		respondError(c, http.StatusBadRequest, "Invalid OTP")
	case errors.Is(err, usecase.ErrOTPExpired):
		respondError(c, http.StatusBadRequest, "OTP expired")
	case errors.Is(err, usecase.ErrOTPLocked):
		respondError(c, http.StatusTooManyRequests, "Too many failed attempts. Try again later.")
	case errors.Is(err, usecase.ErrInvalidResetGrant):
		respondError(c, http.StatusUnauthorized, "Invalid or expired reset token")
	case errors.Is(err, usecase.ErrWrongPassword):
		respondError(c, http.StatusUnauthorized, "Current password is incorrect")
	case errors.Is(err, security.ErrWeakPassword):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("password request failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Something went wrong")
	}
}
