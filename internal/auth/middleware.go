package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/sentinel/internal/models"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// ClaimsContextKey is the key for the verified token claims
	ClaimsContextKey contextKey = "claims"
	// UserContextKey is the key for the user re-resolved from the token subject
	UserContextKey contextKey = "user"
)

// UserRepository resolves the token subject to the current user record
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// ExtractBearerToken returns the token from an "Authorization: Bearer <token>" header
func ExtractBearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// Error codes distinguishing why a token was not accepted
const (
	CodeTokenExpired    = "token_expired"
	CodeTokenInvalid    = "token_invalid"
	CodeUserNotFound    = "user_not_found"
	CodeAccountInactive = "account_inactive"
	CodeAccountLocked   = "account_locked"
)

// RejectionCode classifies why a token or its subject was rejected.
// Returns "" for errors that are not a rejection, such as storage failures.
func RejectionCode(err error) string {
	switch {
	case errors.Is(err, models.ErrTokenExpired):
		return CodeTokenExpired
	case errors.Is(err, models.ErrTokenInvalid):
		return CodeTokenInvalid
	case errors.Is(err, models.ErrSubjectNotFound):
		return CodeUserNotFound
	case errors.Is(err, models.ErrAccountInactive):
		return CodeAccountInactive
	case errors.Is(err, models.ErrAccountLocked):
		return CodeAccountLocked
	default:
		return ""
	}
}

// WriteTokenError maps a Verify error to a 401 with a token_expired or token_invalid code
func WriteTokenError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrTokenExpired) {
		pkghttp.WriteError(w, http.StatusUnauthorized, CodeTokenExpired, "Token has expired")
		return
	}
	pkghttp.WriteError(w, http.StatusUnauthorized, CodeTokenInvalid, "Token is invalid")
}

// WriteSubjectNotFound reports a valid token whose user no longer exists
func WriteSubjectNotFound(w http.ResponseWriter) {
	pkghttp.WriteError(w, http.StatusUnauthorized, CodeUserNotFound, "Token subject no longer exists")
}

// AuthMiddleware verifies the bearer token and re-resolves its subject.
// A valid signature is not enough: the user must still exist, be active and not be locked.
func AuthMiddleware(tm *TokenManager, users UserRepository, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := ExtractBearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "Missing or malformed authorization header")
				return
			}

			claims, err := tm.Verify(tokenString)
			if err != nil {
				WriteTokenError(w, err)
				return
			}

			user, err := users.GetByID(r.Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					WriteSubjectNotFound(w)
					return
				}
				logger.Error("failed to resolve token subject", slog.String("error", err.Error()))
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}

			now := tm.now()
			switch {
			case !user.IsActive:
				pkghttp.WriteError(w, http.StatusForbidden, CodeAccountInactive, "Account is not active")
				return
			case user.IsLocked(now):
				pkghttp.WriteAccountLocked(w, "Account is temporarily locked", models.MinutesUntil(user.LockedUntil, now))
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			ctx = context.WithValue(ctx, UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole enforces the role of the user resolved by AuthMiddleware
func RequireRole(role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUserFromContext(r)
			if user == nil {
				pkghttp.WriteUnauthorized(w, "Unauthorized")
				return
			}

			if user.Role != role {
				pkghttp.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext returns the user resolved by AuthMiddleware
func GetUserFromContext(r *http.Request) *models.User {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetClaimsFromContext returns the token claims verified by AuthMiddleware
func GetClaimsFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(ClaimsContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}
