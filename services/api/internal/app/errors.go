package app

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrForbidden     = errors.New("forbidden")
	ErrValidation    = errors.New("validation failed")
	ErrSelfReference = errors.New("cannot target yourself")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrUnavailable   = errors.New("unavailable")

	ErrMovieNotFound  = fmt.Errorf("movie %w", ErrNotFound)
	ErrReviewNotFound = fmt.Errorf("review %w", ErrNotFound)
	ErrReplyNotFound  = fmt.Errorf("reply %w", ErrNotFound)
	ErrUserNotFound   = fmt.Errorf("user %w", ErrNotFound)
	ErrJobNotFound    = fmt.Errorf("job %w", ErrNotFound)

	ErrReviewExists  = fmt.Errorf("%w: you have already reviewed this movie", ErrConflict)
	ErrEmailTaken    = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrUsernameTaken = fmt.Errorf("%w: username already taken", ErrConflict)

	ErrCannotFollowSelf = fmt.Errorf("%w: cannot follow yourself", ErrSelfReference)

	// ErrInvalidCredentials is shown to clients for any failed login so that
	// it does not reveal which accounts exist.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	ErrUserInactive       = fmt.Errorf("%w: account is deactivated", ErrForbidden)
)

// validationError carries a client-facing message and matches ErrValidation.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool { return target == ErrValidation }

func invalid(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// forbidden returns an ErrForbidden with a specific message.
func forbidden(msg string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, msg)
}
