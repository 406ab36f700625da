package handlers

import (
	"errors"
	"net/http"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/models"
	pkgauth "github.com/BradenHooton/sentinel/pkg/auth"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// writeServiceError maps service errors to status codes and error codes.
// Business failures carry a precise message; anything else is a generic 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var locked *models.AccountLockedError
	var throttled *models.ResendThrottledError
	var pwErr *pkgauth.PasswordValidationError

	switch {
	case errors.As(err, &locked):
		pkghttp.WriteAccountLocked(w, locked.Error(), locked.MinutesRemaining)
	case errors.As(err, &throttled):
		pkghttp.WriteRetryAfter(w, "resend_too_soon", throttled.Error(), throttled.WaitTimeSeconds)
	case errors.As(err, &pwErr):
		pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "invalid_password",
			"Password does not meet requirements", "use 8-72 characters with upper and lower case letters and a digit")
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, models.ErrAccountInactive):
		pkghttp.WriteError(w, http.StatusForbidden, auth.CodeAccountInactive, "Account is not active, verify your email first")
	case errors.Is(err, models.ErrTokenExpired), errors.Is(err, models.ErrTokenInvalid):
		auth.WriteTokenError(w, err)
	case errors.Is(err, models.ErrSubjectNotFound):
		auth.WriteSubjectNotFound(w)
	case errors.Is(err, models.ErrCodeInvalid):
		pkghttp.WriteError(w, http.StatusBadRequest, "code_invalid", "Verification code is invalid")
	case errors.Is(err, models.ErrCodeExpired):
		pkghttp.WriteGone(w, "code_expired", "Verification code has expired, request a new one")
	case errors.Is(err, models.ErrCodeUsed):
		pkghttp.WriteError(w, http.StatusConflict, "code_used", "Verification code has already been used")
	case errors.Is(err, models.ErrInvalidExpiration):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_expiration", err.Error())
	case errors.Is(err, models.ErrUserNotFound):
		pkghttp.WriteNotFound(w, "User not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "An account with this email already exists")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
