package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPayload is the identity carried inside a signed token
type TokenPayload struct {
	Subject    string
	Email      string
	Role       string
	FirstName  string
	LastName   string
	RememberMe bool // Selects the remember-me lifetimes, kept across refreshes
	IssuedAt   time.Time
}

// PayloadFromUser builds a token payload for the user
func PayloadFromUser(u *User) TokenPayload {
	return TokenPayload{
		Subject:   u.ID,
		Email:     u.Email,
		Role:      u.Role,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// TokenPair is an access token and a refresh token issued from the same payload
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"` // Access token TTL, e.g. "24h" or "7d"
}

// TokenClaims is the JWT claim set: sub, iat, exp, jti and iss come from the registered claims
type TokenClaims struct {
	Email      string `json:"email"`
	Role       string `json:"role"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	RememberMe bool   `json:"rememberMe,omitempty"`
	jwt.RegisteredClaims
}

// Payload returns the identity carried by the claims
func (c *TokenClaims) Payload() TokenPayload {
	p := TokenPayload{
		Subject:    c.Subject,
		Email:      c.Email,
		Role:       c.Role,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		RememberMe: c.RememberMe,
	}
	if c.IssuedAt != nil {
		p.IssuedAt = c.IssuedAt.Time.UTC()
	}
	return p
}
