// Package common defines shared constants and sentinel errors used across
// the layers of accountkeeper. Callers should use errors.Is to match these
// values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrorUnavailable = errors.New("store unavailable") // transient, safe to retry

	// Service-level errors (generic/internal flow control).
	ErrorInternal           = errors.New("internal error")
	ErrorInvalidCredentials = errors.New("incorrect username or password")
	ErrorInactiveUser       = errors.New("inactive user")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// ErrNoSubject marks a token that parsed and verified but carries no
	// usable subject claim. Still denies access.
	ErrNoSubject = errors.New("no subject")
)

// ConflictError reports a uniqueness violation on a user field.
// Field is the colliding column ("username" or "email").
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already taken", e.Field)
}

// IsConflict reports whether err is (or wraps) a ConflictError and
// returns it when so.
func IsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
