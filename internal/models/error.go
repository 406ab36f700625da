package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Credential errors
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is not active")
	ErrAccountLocked      = errors.New("account is temporarily locked")

	// Token errors
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
	ErrKeyLoad      = errors.New("failed to load signing keys")

	// ErrSubjectNotFound is a well-formed token whose user no longer exists.
	// It matches ErrUserNotFound but not the token errors.
	ErrSubjectNotFound = fmt.Errorf("token subject: %w", ErrUserNotFound)

	// Verification code errors
	ErrCodeInvalid       = errors.New("verification code is invalid")
	ErrCodeExpired       = errors.New("verification code has expired")
	ErrCodeUsed          = errors.New("verification code has already been used")
	ErrResendTooSoon     = errors.New("verification code was sent too recently")
	ErrInvalidExpiration = errors.New("expiration minutes out of range")
)

// AccountLockedError reports an active lock and how long it has left
type AccountLockedError struct {
	LockedUntil      time.Time
	MinutesRemaining int
}

// NewAccountLockedError builds the error for a lock expiring at lockedUntil
func NewAccountLockedError(lockedUntil, now time.Time) *AccountLockedError {
	return &AccountLockedError{
		LockedUntil:      lockedUntil,
		MinutesRemaining: MinutesUntil(&lockedUntil, now),
	}
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account is locked, try again in %d minute(s)", e.MinutesRemaining)
}

func (e *AccountLockedError) Unwrap() error {
	return ErrAccountLocked
}

// ResendThrottledError reports how long a client must wait before resending
type ResendThrottledError struct {
	WaitTimeSeconds int
}

func (e *ResendThrottledError) Error() string {
	return fmt.Sprintf("please wait %d second(s) before requesting a new code", e.WaitTimeSeconds)
}

func (e *ResendThrottledError) Unwrap() error {
	return ErrResendTooSoon
}
