package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskvault/taskvault-api/internal/transport/http/middleware"
	"github.com/taskvault/taskvault-api/internal/usecase"
)

// ProfileHandler serves the authenticated user's own record.
type ProfileHandler struct {
	users      *usecase.UserService
	auth       *AuthHandler
	uploadsDir string
	logger     *zap.Logger
}

func NewProfileHandler(users *usecase.UserService, auth *AuthHandler, uploadsDir string, log *zap.Logger) *ProfileHandler {
	return &ProfileHandler{users: users, auth: auth, uploadsDir: uploadsDir, logger: log}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.users.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.respondProfileError(c, err)
		return
	}

	respond(c, http.StatusOK, "Profile fetched", Response{"user": newUserView(user)})
}

// UpdateProfileRequest carries partial profile updates as JSON or multipart
// form fields with an optional replacement profileImage file.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName" form:"firstName"`
	LastName  *string `json:"lastName" form:"lastName"`
	Phone     *string `json:"phone" form:"phone"`
	City      *string `json:"city" form:"city"`
	State     *string `json:"state" form:"state"`
	Country   *string `json:"country" form:"country"`
	Pincode   *string `json:"pincode" form:"pincode"`
}

func (h *ProfileHandler) Update(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	var req UpdateProfileRequest
	var imagePath *string

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid profile payload")
			return
		}
		if file, err := c.FormFile("profileImage"); err == nil {
			path, saveErr := h.auth.saveProfileImage(c, file)
			if saveErr != nil {
				h.logger.Warn("save profile image", zap.Error(saveErr))
				respondError(c, http.StatusBadRequest, "could not save profile image")
				return
			}
			imagePath = &path
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid profile payload")
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), userID, usecase.UpdateProfileInput{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		City:         req.City,
		State:        req.State,
		Country:      req.Country,
		Pincode:      req.Pincode,
		ProfileImage: imagePath,
	})
	if err != nil {
		h.respondProfileError(c, err)
		return
	}

	respond(c, http.StatusOK, "Profile updated", Response{"user": newUserView(user)})
}

func (h *ProfileHandler) respondProfileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "User not found")
	default:
		if errors.Unwrap(err) == nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("profile request failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Something went wrong")
	}
}
