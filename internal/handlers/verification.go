package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/BradenHooton/sentinel/internal/services"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// VerificationServiceInterface defines the verification code workflow
type VerificationServiceInterface interface {
	Send(ctx context.Context, email string, expirationMinutes int) (*services.SendCodeResult, error)
	Resend(ctx context.Context, email string, expirationMinutes int) (*services.SendCodeResult, error)
	Verify(ctx context.Context, email, code string) (*services.VerifyCodeResult, error)
}

// VerificationHandler handles the email verification code endpoints
type VerificationHandler struct {
	service VerificationServiceInterface
}

// NewVerificationHandler creates a new VerificationHandler
func NewVerificationHandler(service VerificationServiceInterface) *VerificationHandler {
	return &VerificationHandler{service: service}
}

// SendCodeRequest is the body of send and resend. Zero minutes selects the default lifetime.
// The allowed range is configurable, so the service checks ExpirationMinutes.
type SendCodeRequest struct {
	Email             string `json:"email" validate:"required,email"`
	ExpirationMinutes int    `json:"expirationMinutes"`
}

func (r *SendCodeRequest) normalize() { r.Email = normalizeEmail(r.Email) }

// VerifyCodeRequest is the body of verify
type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// Surrounding whitespace on the code is tolerated, the digits themselves are not
func (r *VerifyCodeRequest) normalize() {
	r.Email = normalizeEmail(r.Email)
	r.Code = strings.TrimSpace(r.Code)
}

// Send issues a verification code
// @Router /auth/verification/send [post]
func (h *VerificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.service.Send)
}

// Resend issues a new code unless the previous one is too recent
// @Router /auth/verification/resend [post]
func (h *VerificationHandler) Resend(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.service.Resend)
}

func (h *VerificationHandler) issue(w http.ResponseWriter, r *http.Request,
	send func(ctx context.Context, email string, expirationMinutes int) (*services.SendCodeResult, error)) {
	var req SendCodeRequest
	if msg, ok := decodeAndValidate(r, &req); !ok {
		pkghttp.WriteBadRequest(w, msg)
		return
	}

	result, err := send(r.Context(), req.Email, req.ExpirationMinutes)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// Verify redeems a code and activates the account
// @Router /auth/verification/verify [post]
func (h *VerificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if msg, ok := decodeAndValidate(r, &req); !ok {
		pkghttp.WriteBadRequest(w, msg)
		return
	}

	result, err := h.service.Verify(r.Context(), req.Email, req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}
