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

const (
	// OTPTTL is how long an issued passcode stays valid.
	OTPTTL = 5 * time.Minute
	// maxOTPAttempts failed comparisons burn the code and lock the user.
	maxOTPAttempts = 5
	// otpLockDuration is how long verification stays locked after too many failures.
	otpLockDuration = 15 * time.Minute
)

var (
	// ErrOTPInvalid indicates the code does not match the stored one, or none exists.
	ErrOTPInvalid = errors.New("invalid otp")
	// ErrOTPExpired indicates the code existed but its validity window passed.
	ErrOTPExpired = errors.New("otp expired")
	// ErrOTPLocked indicates verification is locked out after repeated failures.
	ErrOTPLocked = errors.New("otp verification locked")
)

// OTPManager issues and checks one-time passcodes. Codes are stored hashed
// and are single use: a successful check deletes the code, and so does
// expiry or attempt exhaustion.
type OTPManager struct {
	store  port.OTPStore
	users  port.UserRepository
	mailer port.Mailer
	logger *zap.Logger
	now    func() time.Time
}

// NewOTPManager constructs an OTPManager.
func NewOTPManager(store port.OTPStore, users port.UserRepository, mailer port.Mailer, log *zap.Logger) *OTPManager {
	return &OTPManager{
		store:  store,
		users:  users,
		mailer: mailer,
		logger: log,
		now:    time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (m *OTPManager) WithClock(clock func() time.Time) *OTPManager {
	if clock != nil {
		m.now = clock
	}
	return m
}

// DeliveryConfigured reports whether a real mail transport is wired. When it
// is not, callers surface the issued code in the response for local testing.
func (m *OTPManager) DeliveryConfigured() bool {
	return m.mailer.Configured()
}

// Issue generates a fresh passcode for the (purpose, email) pair, replacing
// any prior one, and sends it best-effort. The plaintext code is returned so
// development mode can surface it; production callers must not.
func (m *OTPManager) Issue(ctx context.Context, purpose domain.OTPPurpose, email string) (string, error) {
	email = domain.NormalizeEmail(email)
	if !purpose.IsValid() {
		return "", fmt.Errorf("unknown otp purpose %q", purpose)
	}

	code, err := security.GenerateOTP()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	hash, err := security.HashOTP(code)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}

	if _, err := m.store.Store(ctx, purpose, email, hash, OTPTTL); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}

	// Delivery is best effort: a mail failure must not fail the flow, the
	// user can always ask for a resend.
	go func(to, code string, purpose domain.OTPPurpose) {
		sendCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := m.mailer.SendOTP(sendCtx, to, code, purpose); err != nil {
			m.logger.Warn("otp delivery failed",
				zap.String("email", logger.MaskEmail(to)),
				zap.String("purpose", string(purpose)),
				zap.Error(err),
			)
		}
	}(email, code, purpose)

	return code, nil
}

// Check verifies the candidate code for the (purpose, email) pair.
//
// The expiry stamp is checked strictly before the hash comparison, and an
// expired record is deleted on sight. A match deletes the code. A mismatch
// increments the attempt counter; the attempt that reaches the limit deletes
// the code and locks the user out of verification for a cooldown period.
func (m *OTPManager) Check(ctx context.Context, purpose domain.OTPPurpose, user *domain.User, code string) error {
	email := domain.NormalizeEmail(user.Email)
	now := m.now().UTC()

	if user.OTPLocked(now) {
		return ErrOTPLocked
	}

	record, err := m.store.Fetch(ctx, purpose, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOTPInvalid
		}
		return fmt.Errorf("fetch code: %w", err)
	}

	if !record.ExpiresAt.After(now) {
		if err := m.store.Delete(ctx, purpose, email); err != nil && !errors.Is(err, repository.ErrNotFound) {
			m.logger.Warn("delete expired otp", zap.Error(err))
		}
		return ErrOTPExpired
	}

	if !security.VerifyOTP(code, record.CodeHash) {
		attempts, incErr := m.store.IncrementAttempts(ctx, purpose, email)
		if incErr != nil && !errors.Is(incErr, repository.ErrNotFound) {
			return fmt.Errorf("count attempt: %w", incErr)
		}

		if attempts >= maxOTPAttempts {
			if err := m.store.Delete(ctx, purpose, email); err != nil && !errors.Is(err, repository.ErrNotFound) {
				m.logger.Warn("delete exhausted otp", zap.Error(err))
			}
			until := now.Add(otpLockDuration)
			if err := m.users.SetOTPLock(ctx, user.ID, &until); err != nil {
				m.logger.Warn("set otp lock", zap.String("user_id", user.ID), zap.Error(err))
			}
			return ErrOTPLocked
		}

		return ErrOTPInvalid
	}

	if err := m.store.Delete(ctx, purpose, email); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("consume code: %w", err)
	}

	if user.OTPLockedUntil != nil {
		if err := m.users.SetOTPLock(ctx, user.ID, nil); err != nil {
			m.logger.Warn("clear otp lock", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	return nil
}
