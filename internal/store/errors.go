package store

import "errors"

var (
	// ErrDuplicateEmail is returned when registering an email that already
	// has an account.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrNotFound is returned when a user, post or comment does not exist.
	// Reads of a private post by a non-author return it too, so existence
	// is not leaked.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when a user attempts to modify a post they
	// do not own.
	ErrForbidden = errors.New("forbidden")
)
