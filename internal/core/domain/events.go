package domain

import "time"

// UserRegisteredEvent is emitted after a user record is created.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Email        string
	RegisteredAt time.Time
}

// UserVerifiedEvent is emitted when a user completes OTP verification.
type UserVerifiedEvent struct {
	EventID    string
	UserID     string
	Email      string
	VerifiedAt time.Time
}

// PasswordChangedEvent is emitted after a password change or reset completes.
type PasswordChangedEvent struct {
	EventID   string
	UserID    string
	ChangedAt time.Time
	Reason    string
}

// UserLoggedOutEvent is emitted when a session is terminated by the user.
type UserLoggedOutEvent struct {
	EventID     string
	UserID      string
	LoggedOutAt time.Time
}
