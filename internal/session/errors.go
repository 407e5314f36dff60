package session

import "errors"

var (
	// ErrNotFound is returned when no session exists under the id, or when
	// a session has no audio attached.
	ErrNotFound = errors.New("session not found")

	// ErrForbidden is returned when the session exists but is owned by a
	// different user.
	ErrForbidden = errors.New("access denied")

	// ErrInvalid is returned for create/update input that fails validation.
	ErrInvalid = errors.New("invalid session input")
)
