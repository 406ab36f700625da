package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/models"
	pkgauth "github.com/BradenHooton/sentinel/pkg/auth"
	pkglogger "github.com/BradenHooton/sentinel/pkg/logger"
)

// Authenticator checks a password against the lockout state machine
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// CodeSender issues a verification code for a pending account
type CodeSender interface {
	Send(ctx context.Context, email string, expirationMinutes int) (*SendCodeResult, error)
}

// AuthService handles authentication business logic
type AuthService struct {
	credentials Authenticator
	repo        UserRepository
	tm          *auth.TokenManager
	codes       CodeSender
	hasher      *pkgauth.PasswordHasher
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
	now         func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(
	credentials Authenticator,
	repo UserRepository,
	tm *auth.TokenManager,
	codes CodeSender,
	hasher *pkgauth.PasswordHasher,
	auditLogger *pkglogger.AuditLogger,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		credentials: credentials,
		repo:        repo,
		tm:          tm,
		codes:       codes,
		hasher:      hasher,
		auditLogger: auditLogger,
		logger:      logger,
		now:         time.Now,
	}
}

// SetClock overrides the time source used for lock checks
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	FirstName           string     `json:"firstName"`
	LastName            string     `json:"lastName"`
	Role                string     `json:"role"`
	IsActive            bool       `json:"isActive"`
	VerificationPending bool       `json:"verificationPending"`
	LastLoginAt         *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// LoginResponse is returned by Login
type LoginResponse struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	ExpiresIn    string        `json:"expiresIn"`
	User         *UserResponse `json:"user"`
}

// VerifyTokenResponse is returned by VerifyToken.
// Reason is set when Valid is false: token_expired means refresh, anything else means log in again.
type VerifyTokenResponse struct {
	Valid  bool          `json:"valid"`
	Reason string        `json:"reason,omitempty"`
	User   *UserResponse `json:"user,omitempty"`
}

// LogoutResponse is returned by Logout
type LogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RegisterInput carries the fields of a new account
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RegisterResponse is returned by Register
type RegisterResponse struct {
	User             *UserResponse `json:"user"`
	VerificationSent bool          `json:"verificationSent"`
}

// Login authenticates a user and returns a token pair
func (s *AuthService) Login(ctx context.Context, email, password string, rememberMe bool) (*LoginResponse, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, models.ErrInvalidCredentials
	}

	user, err := s.credentials.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	pair, err := s.tm.GenerateTokenPair(models.PayloadFromUser(user), rememberMe)
	if err != nil {
		s.logger.Error("failed to generate token pair", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID), slog.Bool("remember_me", rememberMe))

	return &LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		User:         NewUserResponse(user),
	}, nil
}

// Refresh verifies a refresh token and issues a new pair for the same subject.
// A remember-me session keeps its longer lifetimes.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken == "" {
		return nil, models.ErrTokenInvalid
	}

	claims, err := s.tm.Verify(refreshToken)
	if err != nil {
		s.logger.Info("refresh token rejected", slog.Any("error", err))
		return nil, err
	}

	user, err := s.resolve(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	pair, err := s.tm.GenerateTokenPair(models.PayloadFromUser(user), claims.RememberMe)
	if err != nil {
		s.logger.Error("failed to generate token pair", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventTokenRefreshed,
		UserID:    user.ID,
		Email:     user.Email,
		Success:   true,
	})

	return pair, nil
}

// VerifyToken reports whether token is valid and belongs to a usable account.
// Token and account failures produce a negative result with a reason rather than an error.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (*VerifyTokenResponse, error) {
	claims, err := s.tm.Verify(strings.TrimSpace(token))
	if err != nil {
		return &VerifyTokenResponse{Valid: false, Reason: auth.RejectionCode(err)}, nil
	}

	user, err := s.resolve(ctx, claims.Subject)
	if err != nil {
		reason := auth.RejectionCode(err)
		if reason == "" {
			return nil, err
		}
		return &VerifyTokenResponse{Valid: false, Reason: reason}, nil
	}

	return &VerifyTokenResponse{Valid: true, User: NewUserResponse(user)}, nil
}

// Logout acknowledges the end of a session. Tokens are stateless, so nothing is revoked.
// An expired token still logs out; a forged or malformed one does not.
// The subject is re-checked like any other token consumer, so inactive or locked accounts are refused.
func (s *AuthService) Logout(ctx context.Context, token string) (*LogoutResponse, error) {
	claims, err := s.tm.Inspect(strings.TrimSpace(token))
	if err != nil {
		return nil, models.ErrTokenInvalid
	}

	user, err := s.resolve(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLogout,
		UserID:    user.ID,
		Email:     user.Email,
		Success:   true,
	})

	return &LogoutResponse{Success: true, Message: "Logged out successfully"}, nil
}

// Register creates an inactive account and sends it a verification code.
// A delivery failure leaves the account in place with VerificationSent false.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*RegisterResponse, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, models.ErrBadRequest
	}

	if err := pkgauth.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := s.now()
	created, err := s.repo.Create(ctx, &models.User{
		Email:               email,
		PasswordHash:        hash,
		FirstName:           strings.TrimSpace(input.FirstName),
		LastName:            strings.TrimSpace(input.LastName),
		Role:                models.RoleUser,
		IsActive:            false,
		VerificationPending: true,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.logger.Info("registration failed: user already exists")
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventUserRegistered,
		UserID:    created.ID,
		Email:     created.Email,
		Success:   true,
	})

	sent := true
	if _, err := s.codes.Send(ctx, created.Email, 0); err != nil {
		sent = false
		s.logger.Warn("failed to send verification code after registration",
			slog.String("user_id", created.ID),
			slog.Any("error", err))
	}

	return &RegisterResponse{User: NewUserResponse(created), VerificationSent: sent}, nil
}

// resolve loads the token subject and rejects inactive or locked accounts
func (s *AuthService) resolve(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrSubjectNotFound
		}
		s.logger.Error("failed to resolve token subject", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := s.now()
	if !user.IsActive {
		return nil, models.ErrAccountInactive
	}
	if user.IsLocked(now) {
		return nil, models.NewAccountLockedError(*user.LockedUntil, now)
	}

	return user, nil
}

// NewUserResponse converts a user model to the response DTO
func NewUserResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:                  user.ID,
		Email:               user.Email,
		FirstName:           user.FirstName,
		LastName:            user.LastName,
		Role:                user.Role,
		IsActive:            user.IsActive,
		VerificationPending: user.VerificationPending,
		LastLoginAt:         user.LastLoginAt,
		CreatedAt:           user.CreatedAt,
		UpdatedAt:           user.UpdatedAt,
	}
}
