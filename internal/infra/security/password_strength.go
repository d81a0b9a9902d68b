package security

import (
	"errors"
	"fmt"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const (
	minPasswordLength = 6
	minPasswordScore  = 2
)

// ErrWeakPassword indicates the password does not meet the strength bar.
var ErrWeakPassword = errors.New("password is too weak")

// ValidatePasswordStrength rejects passwords that are too short or that
// zxcvbn scores below the acceptable threshold. User-derived inputs (email,
// name) are penalized so a password built from them scores lower.
func ValidatePasswordStrength(password string, userInputs ...string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, minPasswordLength)
	}

	result := zxcvbn.PasswordStrength(password, userInputs)
	if result.Score < minPasswordScore {
		return fmt.Errorf("%w: add length or variety", ErrWeakPassword)
	}

	return nil
}
