package models

import (
	"time"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                  string
	Email               string
	PasswordHash        string
	FirstName           string
	LastName            string
	Role                string // "user" or "admin"
	IsActive            bool
	VerificationPending bool // Cleared once the email verification code is redeemed
	LoginAttempts       int
	LockedUntil         *time.Time // Lock is only in effect while in the future
	LastLoginAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// LockoutPolicy configures the failed-login threshold and lock length
type LockoutPolicy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

// IsLocked reports whether a lock is in effect at now.
// A non-nil LockedUntil in the past is a stale lock and does not count.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
