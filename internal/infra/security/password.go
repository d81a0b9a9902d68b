package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/taskvault/taskvault-api/internal/core/domain"
)

const (
	passwordHashCost = 12
	otpHashCost      = 10
)

// HashPassword generates a bcrypt digest of the provided password.
func HashPassword(password string) (domain.PasswordHash, error) {
	if password == "" {
		return "", fmt.Errorf("password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	return domain.PasswordHash(hash), nil
}

// VerifyPassword compares the candidate password against a stored hash.
// A mismatch is a false result, never an error.
func VerifyPassword(candidate string, hash domain.PasswordHash) bool {
	if candidate == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

// HashOTP generates a bcrypt digest of a one-time passcode. Codes are short
// and short-lived, so the cost factor is lower than for passwords.
func HashOTP(code string) (domain.OTPHash, error) {
	if code == "" {
		return "", fmt.Errorf("code is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), otpHashCost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}

	return domain.OTPHash(hash), nil
}

// VerifyOTP compares a candidate code against a stored hash.
func VerifyOTP(candidate string, hash domain.OTPHash) bool {
	if candidate == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}
