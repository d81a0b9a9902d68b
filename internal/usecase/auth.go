package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taskvault/taskvault-api/internal/core/domain"
	"github.com/taskvault/taskvault-api/internal/core/port"
	"github.com/taskvault/taskvault-api/internal/infra/logger"
	"github.com/taskvault/taskvault-api/internal/infra/security"
	"github.com/taskvault/taskvault-api/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the email or password is incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountNotVerified indicates the account has not completed OTP verification.
	ErrAccountNotVerified = errors.New("account not verified")
	// ErrInvalidRefreshToken indicates the refresh token is forged, expired,
	// or was superseded by a newer one.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrInvalidAccessToken indicates the access token failed verification.
	ErrInvalidAccessToken = errors.New("invalid access token")
)

// TokenPair carries a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService coordinates login, token refresh, and logout.
type AuthService struct {
	users     port.UserRepository
	otps      *OTPManager
	tokens    *security.TokenService
	publisher port.EventPublisher
	logger    *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	users port.UserRepository,
	otps *OTPManager,
	tokens *security.TokenService,
	publisher port.EventPublisher,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		otps:      otps,
		tokens:    tokens,
		publisher: publisher,
		logger:    log,
	}
}

// Login validates the email/password pair and opens a session. The returned
// user has its secret fields cleared.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *TokenPair, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	sanitize(user)
	return user, pair, nil
}

// RequestLoginOTP is the first half of the two-step login: the password is
// checked and a login passcode is issued. The code is returned for
// development-mode surfacing only.
func (s *AuthService) RequestLoginOTP(ctx context.Context, email, password string) (string, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return "", err
	}

	code, err := s.otps.Issue(ctx, domain.PurposeLogin, user.Email)
	if err != nil {
		return "", fmt.Errorf("issue login otp: %w", err)
	}

	s.logger.Info("login otp issued", zap.String("email", logger.MaskEmail(user.Email)))
	return code, nil
}

// VerifyLoginOTP completes the two-step login.
func (s *AuthService) VerifyLoginOTP(ctx context.Context, email, code string) (*domain.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrOTPInvalid
		}
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.otps.Check(ctx, domain.PurposeLogin, user, code); err != nil {
		return nil, nil, err
	}

	pair, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	sanitize(user)
	return user, pair, nil
}

// Refresh rotates the session. The presented token must carry a valid
// signature and match the stored hash: both checks are required, so a token
// superseded by a newer one is dead even though its signature still verifies.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByIDWithSecrets(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if user.RefreshTokenHash == nil || *user.RefreshTokenHash != security.HashToken(refreshToken) {
		return nil, ErrInvalidRefreshToken
	}

	pair, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// Logout clears the stored refresh token hash. Expired access tokens are
// accepted so a stale tab can still end its session; anything unverifiable
// is rejected.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	userID, err := s.tokens.UserIDFromExpiredAccessToken(accessToken)
	if err != nil {
		return ErrInvalidAccessToken
	}

	if err := s.users.SetRefreshTokenHash(ctx, userID, nil); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidAccessToken
		}
		return fmt.Errorf("clear refresh token: %w", err)
	}

	event := domain.UserLoggedOutEvent{
		UserID:      userID,
		LoggedOutAt: time.Now().UTC(),
	}
	if err := s.publisher.PublishUserLoggedOut(ctx, event); err != nil {
		s.logger.Warn("publish logged out event", zap.Error(err))
	}

	return nil
}

func (s *AuthService) authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	if domain.NormalizeEmail(email) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmailWithSecrets(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !security.VerifyPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !user.IsVerified {
		return nil, ErrAccountNotVerified
	}

	return user, nil
}

// openSession issues a fresh token pair and mirrors the refresh token hash
// into the user record, invalidating whatever session came before.
func (s *AuthService) openSession(ctx context.Context, userID string) (*TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := s.tokens.IssueRefreshToken(userID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	hash := security.HashToken(refresh)
	if err := s.users.SetRefreshTokenHash(ctx, userID, &hash); err != nil {
		return nil, fmt.Errorf("store refresh token hash: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func sanitize(user *domain.User) {
	user.PasswordHash = ""
	user.RefreshTokenHash = nil
}
