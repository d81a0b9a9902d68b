package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicateEmail indicates an insert collided with the unique email constraint.
	ErrDuplicateEmail = errors.New("repository: email already registered")
)
