package port

import (
	"context"
	"time"

	"github.com/taskvault/taskvault-api/internal/core/domain"
)

// UserRepository persists identity and credential records.
//
// GetByEmail and GetByID leave the secret columns (password hash, refresh
// token hash) empty; the WithSecrets variants populate them and exist for the
// login and refresh paths only.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByEmailWithSecrets(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByIDWithSecrets(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, user domain.User) error
	UpdatePassword(ctx context.Context, id string, hash domain.PasswordHash, changedAt time.Time) error
	MarkVerified(ctx context.Context, id string) error
	SetRefreshTokenHash(ctx context.Context, id string, hash *string) error
	SetOTPLock(ctx context.Context, id string, until *time.Time) error
}

// OTPRecord is a stored one-time passcode entry.
type OTPRecord struct {
	Purpose   domain.OTPPurpose
	Email     string
	CodeHash  domain.OTPHash
	Attempts  int
	CreatedAt time.Time
	ExpiresAt time.Time
}

// OTPStore persists short-lived passcodes keyed by (purpose, email).
//
// Store replaces any prior code for the pair in the same operation, so at most
// one live code exists per pair and verification can never succeed against a
// stale code. The backing store expires entries on its own once the TTL
// passes; callers still check ExpiresAt before comparing.
type OTPStore interface {
	Store(ctx context.Context, purpose domain.OTPPurpose, email string, codeHash domain.OTPHash, ttl time.Duration) (*OTPRecord, error)
	Fetch(ctx context.Context, purpose domain.OTPPurpose, email string) (*OTPRecord, error)
	IncrementAttempts(ctx context.Context, purpose domain.OTPPurpose, email string) (int, error)
	Delete(ctx context.Context, purpose domain.OTPPurpose, email string) error
}

// TaskRepository persists per-user tasks.
type TaskRepository interface {
	Create(ctx context.Context, task domain.Task) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	ListByUser(ctx context.Context, userID string, filter domain.TaskFilter) ([]domain.Task, error)
	Update(ctx context.Context, task domain.Task) error
	Delete(ctx context.Context, id string) error
}

// ResetGrantStore persists the short-lived grant issued between a verified
// reset passcode and the password change that consumes it. Grants are stored
// hashed and are single use.
type ResetGrantStore interface {
	Store(ctx context.Context, email, grantHash string, ttl time.Duration) error
	Consume(ctx context.Context, email, grantHash string) error
}

// RateLimitStore defines the persistence operations required to enforce
// sliding-window limits.
type RateLimitStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}
