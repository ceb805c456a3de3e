// Package storage persists users, categories, offers, comments and uploads.
package storage

import "errors"

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("already exists")
	// ErrInvalid is returned when input fails validation.
	ErrInvalid = errors.New("invalid input")
	// ErrForbidden is returned when the caller does not own the entity.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials is returned by Authenticate.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTooLarge is returned when an upload exceeds its size limit.
	ErrTooLarge = errors.New("upload too large")
)
