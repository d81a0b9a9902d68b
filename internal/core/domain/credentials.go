package domain

// PasswordHash is a bcrypt digest of a user password. Values are produced by
// security.HashPassword only; repositories accept this type rather than a raw
// string so a plaintext password cannot reach storage, and re-saving a stored
// hash never re-hashes it.
type PasswordHash string

// OTPHash is a bcrypt digest of a one-time passcode, with the same
// produced-by-construction guarantee as PasswordHash.
type OTPHash string
