package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/sentinel/internal/services"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// CredentialAdminInterface defines the administrator lockout operations
type CredentialAdminInterface interface {
	Unlock(ctx context.Context, email string) (*services.CredentialStatus, error)
	Status(ctx context.Context, email string) (*services.CredentialStatus, error)
}

// CodeCleaner purges expired verification codes
type CodeCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// AdminHandler handles administrator HTTP requests
type AdminHandler struct {
	credentials CredentialAdminInterface
	codes       CodeCleaner
	logger      *slog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(credentials CredentialAdminInterface, codes CodeCleaner, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{credentials: credentials, codes: codes, logger: logger}
}

// UnlockRequest represents the request body for an unlock
type UnlockRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *UnlockRequest) normalize() { r.Email = normalizeEmail(r.Email) }

// CleanupResponse reports how many expired codes were deleted
type CleanupResponse struct {
	Deleted int64 `json:"deleted"`
}

// UnlockUser handles POST /admin/users/unlock
func (h *AdminHandler) UnlockUser(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if msg, ok := decodeAndValidate(r, &req); !ok {
		pkghttp.WriteBadRequest(w, msg)
		return
	}

	status, err := h.credentials.Unlock(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}

// LockStatus handles GET /admin/users/lock-status?email=
func (h *AdminHandler) LockStatus(w http.ResponseWriter, r *http.Request) {
	email := normalizeEmail(r.URL.Query().Get("email"))
	if err := validate.Var(email, "required,email"); err != nil {
		pkghttp.WriteBadRequest(w, "email query parameter must be a valid email address")
		return
	}

	status, err := h.credentials.Status(r.Context(), email)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}

// CleanupVerificationCodes handles POST /admin/verification-codes/cleanup
func (h *AdminHandler) CleanupVerificationCodes(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.codes.CleanupExpired(r.Context())
	if err != nil {
		h.logger.Error("failed to clean up verification codes", slog.String("error", err.Error()))
		pkghttp.WriteInternalError(w, "Failed to clean up verification codes")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, CleanupResponse{Deleted: deleted})
}
