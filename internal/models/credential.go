package models

import (
	"time"
)

// CredentialState is the lockout state machine position of a credential record
type CredentialState string

const (
	CredentialStateActiveUnlocked CredentialState = "ACTIVE-UNLOCKED"
	CredentialStateActiveLocked   CredentialState = "ACTIVE-LOCKED"
	CredentialStateInactive       CredentialState = "INACTIVE"
)

// Credential is the security-relevant projection of a user record.
// It is derived from User at read time and never stored on its own.
type Credential struct {
	UserID        string     `json:"userId"`
	Email         string     `json:"email"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Role          string     `json:"role"`
	IsActive      bool       `json:"isActive"`
	LoginAttempts int        `json:"loginAttempts"`
	LockedUntil   *time.Time `json:"lockedUntil,omitempty"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// CredentialFromUser mirrors the user record into a credential
func CredentialFromUser(u *User) *Credential {
	return &Credential{
		UserID:        u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Role:          u.Role,
		IsActive:      u.IsActive,
		LoginAttempts: u.LoginAttempts,
		LockedUntil:   u.LockedUntil,
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// IsLocked compares the lock expiry against now; a nil check alone is not enough
func (c *Credential) IsLocked(now time.Time) bool {
	return c.LockedUntil != nil && now.Before(*c.LockedUntil)
}

// State returns the lockout state at now
func (c *Credential) State(now time.Time) CredentialState {
	switch {
	case !c.IsActive:
		return CredentialStateInactive
	case c.IsLocked(now):
		return CredentialStateActiveLocked
	default:
		return CredentialStateActiveUnlocked
	}
}

// MinutesUntilUnlock returns the whole minutes left on the lock, rounded up.
// Returns 0 when there is no lock or it has elapsed.
func (c *Credential) MinutesUntilUnlock(now time.Time) int {
	return MinutesUntil(c.LockedUntil, now)
}

// MinutesUntil returns ceil((t - now) / 1m) clamped to >= 0
func MinutesUntil(t *time.Time, now time.Time) int {
	if t == nil {
		return 0
	}
	remaining := t.Sub(now)
	if remaining <= 0 {
		return 0
	}
	minutes := int(remaining / time.Minute)
	if remaining%time.Minute != 0 {
		minutes++
	}
	return minutes
}
