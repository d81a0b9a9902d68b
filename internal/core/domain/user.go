package domain

import (
	"strings"
	"time"
)

// Role enumerates the access levels a user can hold.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	RoleBuyer Role = "buyer"
)

// IsValid reports whether the role is one of the known values.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleBuyer:
		return true
	}
	return false
}

// OTPPurpose is the closed set of flows a one-time passcode can belong to.
// A code issued for one purpose never verifies for another.
type OTPPurpose string

const (
	PurposeRegistration OTPPurpose = "registration"
	PurposeLogin        OTPPurpose = "login"
	PurposeReset        OTPPurpose = "forgot"
)

// IsValid reports whether the purpose is one of the known values.
func (p OTPPurpose) IsValid() bool {
	switch p {
	case PurposeRegistration, PurposeLogin, PurposeReset:
		return true
	}
	return false
}

// Address groups the postal fields carried on a user profile.
type Address struct {
	City    string
	State   string
	Country string
	Pincode string
}

// User is the identity and credential record.
//
// PasswordHash and RefreshTokenHash are secret columns: default repository
// reads leave them empty, and only the WithSecrets lookups populate them.
type User struct {
	ID               string
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	Address          Address
	ProfileImage     string
	Role             Role
	IsVerified       bool
	PasswordHash     PasswordHash
	RefreshTokenHash *string
	OTPLockedUntil   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OTPLocked reports whether OTP verification is currently locked out for the user.
func (u *User) OTPLocked(now time.Time) bool {
	return u.OTPLockedUntil != nil && u.OTPLockedUntil.After(now)
}

// FullName joins the name parts for display.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormalizeEmail lowercases and trims an email for lookup and storage.
// Uniqueness is case-insensitive, so every path in and out of the user
// store goes through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
