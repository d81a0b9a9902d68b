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

var (
	// ErrEmailTaken indicates a verified account already owns the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotFound indicates no account exists for the email.
	ErrUserNotFound = errors.New("user not found")
)

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	FirstName    string
	LastName     string
	Email        string
	Password     string
	Phone        string
	Address      domain.Address
	ProfileImage string
	Role         domain.Role
}

// RegistrationService creates accounts and drives OTP verification.
type RegistrationService struct {
	users     port.UserRepository
	otps      *OTPManager
	auth      *AuthService
	publisher port.EventPublisher
	logger    *zap.Logger
}

// NewRegistrationService constructs a RegistrationService instance.
func NewRegistrationService(
	users port.UserRepository,
	otps *OTPManager,
	auth *AuthService,
	publisher port.EventPublisher,
	log *zap.Logger,
) *RegistrationService {
	return &RegistrationService{
		users:     users,
		otps:      otps,
		auth:      auth,
		publisher: publisher,
		logger:    log,
	}
}

// Register creates an unverified account and issues a registration passcode.
// Registering over an existing unverified account refreshes its details and
// reissues the code; a verified account is a conflict. The returned code is
// for development-mode surfacing only.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (*domain.User, string, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return nil, "", fmt.Errorf("email is required")
	}
	if input.FirstName == "" {
		return nil, "", fmt.Errorf("first name is required")
	}

	if err := security.ValidatePasswordStrength(input.Password, email, input.FirstName, input.LastName); err != nil {
		return nil, "", err
	}

	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.IsValid() {
		return nil, "", fmt.Errorf("unknown role %q", input.Role)
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsVerified {
			return nil, "", ErrEmailTaken
		}
		// Unverified re-registration: refresh the record in place.
		existing.FirstName = input.FirstName
		existing.LastName = input.LastName
		existing.Phone = input.Phone
		existing.Address = input.Address
		if input.ProfileImage != "" {
			existing.ProfileImage = input.ProfileImage
		}
		existing.UpdatedAt = now
		if err := s.users.UpdateProfile(ctx, *existing); err != nil {
			return nil, "", fmt.Errorf("update unverified user: %w", err)
		}
		if err := s.users.UpdatePassword(ctx, existing.ID, hash, now); err != nil {
			return nil, "", fmt.Errorf("update password: %w", err)
		}

		code, err := s.otps.Issue(ctx, domain.PurposeRegistration, email)
		if err != nil {
			return nil, "", fmt.Errorf("issue registration otp: %w", err)
		}

		sanitize(existing)
		return existing, code, nil

	case errors.Is(err, repository.ErrNotFound):
		// fall through to create

	default:
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        email,
		Phone:        input.Phone,
		Address:      input.Address,
		ProfileImage: input.ProfileImage,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	event := domain.UserRegisteredEvent{
		UserID:       user.ID,
		Email:        user.Email,
		RegisteredAt: now,
	}
	if err := s.publisher.PublishUserRegistered(ctx, event); err != nil {
		s.logger.Warn("publish registered event", zap.Error(err))
	}

	code, err := s.otps.Issue(ctx, domain.PurposeRegistration, email)
	if err != nil {
		return nil, "", fmt.Errorf("issue registration otp: %w", err)
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	sanitize(&user)
	return &user, code, nil
}

// VerifyRegistration checks the registration passcode, marks the account
// verified, and logs the user in.
func (s *RegistrationService) VerifyRegistration(ctx context.Context, email, code string) (*domain.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrOTPInvalid
		}
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.otps.Check(ctx, domain.PurposeRegistration, user, code); err != nil {
		return nil, nil, err
	}

	if !user.IsVerified {
		if err := s.users.MarkVerified(ctx, user.ID); err != nil {
			return nil, nil, fmt.Errorf("mark verified: %w", err)
		}
		user.IsVerified = true

		event := domain.UserVerifiedEvent{
			UserID:     user.ID,
			Email:      user.Email,
			VerifiedAt: time.Now().UTC(),
		}
		if err := s.publisher.PublishUserVerified(ctx, event); err != nil {
			s.logger.Warn("publish verified event", zap.Error(err))
		}
	}

	pair, err := s.auth.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	sanitize(user)
	return user, pair, nil
}

// ResendOTP discards any live passcode for the (purpose, email) pair and
// issues a fresh one. The returned code is for development-mode surfacing.
func (s *RegistrationService) ResendOTP(ctx context.Context, purpose domain.OTPPurpose, email string) (string, error) {
	if !purpose.IsValid() {
		return "", fmt.Errorf("unknown otp purpose %q", purpose)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	// Issue replaces the stored code atomically, so no explicit delete is needed.
	code, err := s.otps.Issue(ctx, purpose, user.Email)
	if err != nil {
		return "", fmt.Errorf("issue otp: %w", err)
	}

	return code, nil
}

// ResendOTPForUser reissues a code for a user addressed by id instead of
// email, for clients that only hold the id from registration.
func (s *RegistrationService) ResendOTPForUser(ctx context.Context, purpose domain.OTPPurpose, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	return s.ResendOTP(ctx, purpose, user.Email)
}
