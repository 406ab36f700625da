package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/services"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string, rememberMe bool) (*services.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	VerifyToken(ctx context.Context, token string) (*services.VerifyTokenResponse, error)
	Logout(ctx context.Context, token string) (*services.LogoutResponse, error)
	Register(ctx context.Context, input services.RegisterInput) (*services.RegisterResponse, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

func (r *LoginRequest) normalize() { r.Email = normalizeEmail(r.Email) }

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
}

func (r *RegisterRequest) normalize() {
	r.Email = normalizeEmail(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
}

// RefreshTokenRequest represents the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// VerifyTokenRequest represents the request body for token verification
type VerifyTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// Login handles user login
// @Summary User login
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if msg, ok := decodeAndValidate(r, &req); !ok {
		pkghttp.WriteBadRequest(w, msg)
		return
	}

	resp, err := h.service.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Register handles user registration.
// The account starts inactive until the emailed code is verified.
// @Summary User registration
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if msg, ok := decodeAndValidate(r, &req); !ok {
		pkghttp.WriteBadRequest(w, msg)
		return
	}

	resp, err := h.service.Register(r.Context(), services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, resp)
}

// Refresh exchanges a refresh token for a new token pair
// @Summary Refresh access token
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if msg, ok := decodeAndValidate(r, &req); !ok {
		pkghttp.WriteBadRequest(w, msg)
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, pair)
}

// VerifyToken reports whether a token is valid. A rejected token is a 200 with valid=false and a reason.
// @Router /auth/verify-token [post]
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req VerifyTokenRequest
	if msg, ok := decodeAndValidate(r, &req); !ok {
		pkghttp.WriteBadRequest(w, msg)
		return
	}

	resp, err := h.service.VerifyToken(r.Context(), req.Token)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Logout reads the bearer token directly so an expired token can still log out
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.ExtractBearerToken(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Missing or malformed authorization header")
		return
	}

	resp, err := h.service.Logout(r.Context(), token)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Me returns the user resolved by AuthMiddleware
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, services.NewUserResponse(user))
}

// ForgotPassword is not supported yet
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteNotImplemented(w, "Password reset is not available")
}

// ResetPassword is not supported yet
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteNotImplemented(w, "Password reset is not available")
}
