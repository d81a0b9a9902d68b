package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskvault/taskvault-api/internal/core/domain"
	"github.com/taskvault/taskvault-api/internal/core/port"
	"github.com/taskvault/taskvault-api/internal/infra/logger"
	"github.com/taskvault/taskvault-api/internal/infra/security"
	"github.com/taskvault/taskvault-api/internal/repository"
)

// resetGrantTTL bounds the gap between verifying the reset passcode and
// submitting the new password.
const resetGrantTTL = 10 * time.Minute

var (
	// ErrInvalidResetGrant indicates the reset grant is missing, used, or expired.
	ErrInvalidResetGrant = errors.New("invalid reset grant")
	// ErrWrongPassword indicates the current password check failed.
	ErrWrongPassword = errors.New("current password is incorrect")
)

// PasswordResetService drives the forgot-password flow and password changes.
type PasswordResetService struct {
	users     port.UserRepository
	otps      *OTPManager
	grants    port.ResetGrantStore
	publisher port.EventPublisher
	logger    *zap.Logger
}

// NewPasswordResetService constructs a PasswordResetService instance.
func NewPasswordResetService(
	users port.UserRepository,
	otps *OTPManager,
	grants port.ResetGrantStore,
	publisher port.EventPublisher,
	log *zap.Logger,
) *PasswordResetService {
	return &PasswordResetService{
		users:     users,
		otps:      otps,
		grants:    grants,
		publisher: publisher,
		logger:    log,
	}
}

// RequestReset issues a reset passcode if the email has an account. A missing
// account is not an error: callers return the same envelope either way so the
// endpoint cannot be used to enumerate emails. The returned code is for
// development-mode surfacing only.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email",
				zap.String("email", logger.MaskEmail(email)))
			return "", nil
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	code, err := s.otps.Issue(ctx, domain.PurposeReset, user.Email)
	if err != nil {
		return "", fmt.Errorf("issue reset otp: %w", err)
	}

	return code, nil
}

// VerifyResetOTP checks the reset passcode and exchanges it for a short-lived
// single-use grant. The grant, not the passcode, authorizes the password
// change that follows.
func (s *PasswordResetService) VerifyResetOTP(ctx context.Context, email, code string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrOTPInvalid
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	if err := s.otps.Check(ctx, domain.PurposeReset, user, code); err != nil {
		return "", err
	}

	grant := uuid.NewString()
	if err := s.grants.Store(ctx, user.Email, security.HashToken(grant), resetGrantTTL); err != nil {
		return "", fmt.Errorf("store reset grant: %w", err)
	}

	return grant, nil
}

// VerifyResetOTPForUser checks the reset code for a user addressed by id
// instead of email, for clients that only hold the id from registration.
// An unknown id reads the same as a wrong code.
func (s *PasswordResetService) VerifyResetOTPForUser(ctx context.Context, userID, code string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrOTPInvalid
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	return s.VerifyResetOTP(ctx, user.Email, code)
}

// ResetPassword consumes a reset grant and replaces the password. The stored
// refresh token hash is cleared so any open session dies with the old password.
func (s *PasswordResetService) ResetPassword(ctx context.Context, email, grant, newPassword string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetGrant
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if err := s.grants.Consume(ctx, user.Email, security.HashToken(grant)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetGrant
		}
		return fmt.Errorf("consume reset grant: %w", err)
	}

	return s.applyNewPassword(ctx, user, newPassword, "reset")
}

// ChangePassword is the authenticated variant: the current password vouches
// for the change instead of a reset grant.
func (s *PasswordResetService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByIDWithSecrets(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if !security.VerifyPassword(currentPassword, user.PasswordHash) {
		return ErrWrongPassword
	}

	return s.applyNewPassword(ctx, user, newPassword, "change")
}

func (s *PasswordResetService) applyNewPassword(ctx context.Context, user *domain.User, newPassword, reason string) error {
	if err := security.ValidatePasswordStrength(newPassword, user.Email, user.FirstName, user.LastName); err != nil {
		return err
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	changedAt := time.Now().UTC()
	if err := s.users.UpdatePassword(ctx, user.ID, hash, changedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.users.SetRefreshTokenHash(ctx, user.ID, nil); err != nil {
		s.logger.Warn("revoke session after password change",
			zap.String("user_id", user.ID), zap.Error(err))
	}

	event := domain.PasswordChangedEvent{
		UserID:    user.ID,
		ChangedAt: changedAt,
		Reason:    reason,
	}
	if err := s.publisher.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("publish password changed event", zap.Error(err))
	}

	s.logger.Info("password updated",
		zap.String("user_id", user.ID),
		zap.String("reason", reason),
	)

	return nil
}
