package routes

import (
	"log/slog"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/handlers"
	"github.com/BradenHooton/sentinel/internal/middleware"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth         *handlers.AuthHandler
	Verification *handlers.VerificationHandler
	Admin        *handlers.AdminHandler
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	tokenManager *auth.TokenManager,
	users auth.UserRepository,
	limits middleware.RateLimitConfig,
	logger *slog.Logger,
) {
	loginLimit := middleware.RateLimitByIP(limits.LoginPerMinute)
	verificationLimit := middleware.RateLimitByIP(limits.VerificationPerMinute)

	router.Route("/auth", func(r chi.Router) {
		// Public routes - no authentication required
		r.With(loginLimit).Post("/login", h.Auth.Login)
		r.With(loginLimit).Post("/register", h.Auth.Register)
		r.Post("/refresh", h.Auth.Refresh)
		r.Post("/verify-token", h.Auth.VerifyToken)
		r.Post("/logout", h.Auth.Logout)
		r.Post("/forgot-password", h.Auth.ForgotPassword)
		r.Post("/reset-password", h.Auth.ResetPassword)

		r.Route("/verification", func(r chi.Router) {
			r.Use(verificationLimit)
			r.Post("/send", h.Verification.Send)
			r.Post("/resend", h.Verification.Resend)
			r.Post("/verify", h.Verification.Verify)
		})

		// Any authenticated user
		r.With(auth.AuthMiddleware(tokenManager, users, logger)).Get("/me", h.Auth.Me)
	})

	// Admin-only routes
	router.Route("/admin", func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager, users, logger))
		r.Use(auth.RequireRole(models.RoleAdmin))

		r.Post("/users/unlock", h.Admin.UnlockUser)
		r.Get("/users/lock-status", h.Admin.LockStatus)
		r.Post("/verification-codes/cleanup", h.Admin.CleanupVerificationCodes)
	})
}
