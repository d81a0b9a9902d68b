package port

import (
	"context"

	"github.com/taskvault/taskvault-api/internal/core/domain"
)

// Mailer delivers one-time passcodes to users.
//
// Configured reports whether a real transport is wired; when it returns false
// the service runs in development mode and surfaces codes through the response
// instead of relying on delivery.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string, purpose domain.OTPPurpose) error
	Configured() bool
}
