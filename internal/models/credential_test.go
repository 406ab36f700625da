package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCredential_State(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	future := now.Add(5 * time.Minute)
	past := now.Add(-5 * time.Minute)

	tests := []struct {
		name     string
		cred     Credential
		expected CredentialState
	}{
		{"active without lock", Credential{IsActive: true}, CredentialStateActiveUnlocked},
		{"active with future lock", Credential{IsActive: true, LockedUntil: &future}, CredentialStateActiveLocked},
		{"active with elapsed lock", Credential{IsActive: true, LockedUntil: &past}, CredentialStateActiveUnlocked},
		{"inactive", Credential{IsActive: false}, CredentialStateInactive},
		{"inactive and locked", Credential{IsActive: false, LockedUntil: &future}, CredentialStateInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cred.State(now))
		})
	}
}

func TestCredential_MinutesUntilUnlock(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	at := func(d time.Duration) *time.Time {
		t := now.Add(d)
		return &t
	}

	tests := []struct {
		name        string
		lockedUntil *time.Time
		expected    int
	}{
		{"no lock", nil, 0},
		{"elapsed", at(-time.Minute), 0},
		{"exactly now", at(0), 0},
		{"one second left rounds up", at(time.Second), 1},
		{"exact minutes", at(15 * time.Minute), 15},
		{"partial minute rounds up", at(14*time.Minute + 30*time.Second), 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Credential{IsActive: true, LockedUntil: tt.lockedUntil}
			assert.Equal(t, tt.expected, c.MinutesUntilUnlock(now))
		})
	}
}

func TestCredentialFromUser(t *testing.T) {
	now := time.Now()
	u := &User{
		ID:            "user-1",
		Email:         "jane@example.com",
		FirstName:     "Jane",
		LastName:      "Doe",
		Role:          RoleUser,
		IsActive:      true,
		LoginAttempts: 2,
		LastLoginAt:   &now,
	}

	c := CredentialFromUser(u)

	assert.Equal(t, "user-1", c.UserID)
	assert.Equal(t, "jane@example.com", c.Email)
	assert.Equal(t, 2, c.LoginAttempts)
	assert.Equal(t, &now, c.LastLoginAt)
	assert.Equal(t, CredentialStateActiveUnlocked, c.State(now))
}

func TestAccountLockedError(t *testing.T) {
	now := time.Now()
	err := NewAccountLockedError(now.Add(90*time.Second), now)

	assert.ErrorIs(t, err, ErrAccountLocked)
	assert.Equal(t, 2, err.MinutesRemaining)
	assert.Contains(t, err.Error(), "2 minute")
}

func TestResendThrottledError(t *testing.T) {
	err := &ResendThrottledError{WaitTimeSeconds: 42}

	assert.ErrorIs(t, err, ErrResendTooSoon)
	assert.Contains(t, err.Error(), "42")
}
