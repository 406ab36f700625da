package models

import (
	"time"
)

// VerificationCodeLength is the number of digits in an issued code
const VerificationCodeLength = 6

// VerificationCode is a single-use code proving control of an email address
type VerificationCode struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Code      string     `json:"-"` // Never returned to clients
	IsUsed    bool       `json:"isUsed"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	ExpiresAt time.Time  `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// IsExpired reports whether the code has expired at now
func (c *VerificationCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
