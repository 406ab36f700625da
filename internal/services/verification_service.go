package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	pkglogger "github.com/BradenHooton/sentinel/pkg/logger"
)

// VerificationCodeRepository defines verification code storage operations
type VerificationCodeRepository interface {
	InvalidateUnused(ctx context.Context, email string, now time.Time) (int64, error)
	Create(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error)
	GetLatestActive(ctx context.Context, email string, now time.Time) (*models.VerificationCode, error)
	GetByEmailAndCode(ctx context.Context, email, code string) (*models.VerificationCode, error)
	MarkUsed(ctx context.Context, id string, now time.Time) (*models.VerificationCode, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Transactor runs fn inside a single database transaction carried by ctx
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// VerificationConfig holds code lifetime bounds and the resend throttle
type VerificationConfig struct {
	DefaultExpiryMinutes int
	MinExpiryMinutes     int
	MaxExpiryMinutes     int
	ResendInterval       time.Duration
}

// SendCodeResult is returned by Send and Resend
type SendCodeResult struct {
	Success         bool       `json:"success"`
	Message         string     `json:"message"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	CodeID          string     `json:"codeId,omitempty"`
	AlreadyVerified bool       `json:"alreadyVerified,omitempty"`
}

// VerifyCodeResult is returned by Verify
type VerifyCodeResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	UserActivated bool   `json:"userActivated"`
}

// VerificationService issues, throttles and redeems email verification codes
type VerificationService struct {
	codeRepo     VerificationCodeRepository
	userRepo     UserRepository
	tx           Transactor
	emailService EmailService
	config       VerificationConfig
	audit        *pkglogger.AuditLogger
	logger       *slog.Logger
	now          func() time.Time
	generateCode func() (string, error)
}

// NewVerificationService creates a new VerificationService
func NewVerificationService(
	codeRepo VerificationCodeRepository,
	userRepo UserRepository,
	tx Transactor,
	emailService EmailService,
	config VerificationConfig,
	audit *pkglogger.AuditLogger,
	logger *slog.Logger,
) *VerificationService {
	return &VerificationService{
		codeRepo:     codeRepo,
		userRepo:     userRepo,
		tx:           tx,
		emailService: emailService,
		config:       config,
		audit:        audit,
		logger:       logger,
		now:          time.Now,
		generateCode: GenerateNumericCode,
	}
}

// SetClock overrides the time source for expiry and throttle decisions
func (s *VerificationService) SetClock(now func() time.Time) {
	s.now = now
}

// SetCodeGenerator overrides how codes are generated
func (s *VerificationService) SetCodeGenerator(gen func() (string, error)) {
	s.generateCode = gen
}

// GenerateNumericCode returns a uniformly random zero-padded 6 digit code
func GenerateNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%0*d", models.VerificationCodeLength, n.Int64()), nil
}

// NormalizeCode upper-cases and trims a submitted code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *VerificationService) expiryMinutes(requested int) (int, error) {
	if requested == 0 {
		return s.config.DefaultExpiryMinutes, nil
	}
	if requested < s.config.MinExpiryMinutes || requested > s.config.MaxExpiryMinutes {
		return 0, fmt.Errorf("%w: must be between %d and %d", models.ErrInvalidExpiration,
			s.config.MinExpiryMinutes, s.config.MaxExpiryMinutes)
	}
	return requested, nil
}

// pendingUser returns the user for email, or a result when the account is already verified
func (s *VerificationService) pendingUser(ctx context.Context, email string) (*models.User, *SendCodeResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, models.ErrUserNotFound
		}
		s.logger.Error("failed to load user for verification", slog.String("error", err.Error()))
		return nil, nil, models.ErrInternalServer
	}

	if user.IsActive {
		return user, &SendCodeResult{
			Success:         true,
			Message:         "Email is already verified",
			AlreadyVerified: true,
		}, nil
	}

	return user, nil, nil
}

// Send issues a new code for email, invalidating any unused ones.
// expirationMinutes of 0 selects the default lifetime.
func (s *VerificationService) Send(ctx context.Context, email string, expirationMinutes int) (*SendCodeResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	minutes, err := s.expiryMinutes(expirationMinutes)
	if err != nil {
		return nil, err
	}

	_, verified, err := s.pendingUser(ctx, email)
	if err != nil || verified != nil {
		return verified, err
	}

	result, err := s.issue(ctx, email, minutes)
	if errors.Is(err, models.ErrConflict) {
		// A concurrent issue for this email committed first; a fresh transaction supersedes it
		result, err = s.issue(ctx, email, minutes)
	}
	if errors.Is(err, models.ErrConflict) {
		return nil, s.throttledByLatest(ctx, email)
	}
	return result, err
}

// Resend behaves like Send unless the latest active code is younger than the resend
// interval, in which case it returns a *models.ResendThrottledError
func (s *VerificationService) Resend(ctx context.Context, email string, expirationMinutes int) (*SendCodeResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	minutes, err := s.expiryMinutes(expirationMinutes)
	if err != nil {
		return nil, err
	}

	_, verified, err := s.pendingUser(ctx, email)
	if err != nil || verified != nil {
		return verified, err
	}

	now := s.now()
	latest, err := s.codeRepo.GetLatestActive(ctx, email, now)
	switch {
	case err == nil:
		elapsed := now.Sub(latest.CreatedAt)
		if elapsed < s.config.ResendInterval {
			return nil, s.throttled(elapsed)
		}
	case errors.Is(err, models.ErrNotFound):
	default:
		s.logger.Error("failed to load latest verification code", slog.String("error", err.Error()))
		return nil, models.ErrInternalServer
	}

	result, err := s.issue(ctx, email, minutes)
	if errors.Is(err, models.ErrConflict) {
		// A concurrent resend won the race and is subject to the same interval
		return nil, s.throttledByLatest(ctx, email)
	}
	return result, err
}

// throttled returns the wait for a code created elapsed ago, rounded down to the second
func (s *VerificationService) throttled(elapsed time.Duration) *models.ResendThrottledError {
	wait := s.config.ResendInterval - elapsed
	if wait < 0 {
		wait = 0
	}
	return &models.ResendThrottledError{WaitTimeSeconds: int(wait / time.Second)}
}

// throttledByLatest reports the wait imposed by the code a concurrent issue just stored
func (s *VerificationService) throttledByLatest(ctx context.Context, email string) error {
	now := s.now()
	latest, err := s.codeRepo.GetLatestActive(ctx, email, now)
	if errors.Is(err, models.ErrNotFound) {
		// Superseded by an issue that has not committed yet
		return s.throttled(0)
	}
	if err != nil {
		s.logger.Error("failed to load concurrently issued verification code",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.String("error", err.Error()))
		return models.ErrInternalServer
	}
	return s.throttled(now.Sub(latest.CreatedAt))
}

// issue stores and delivers a new code. Returns models.ErrConflict when a concurrent
// issue for the same email holds the single unused slot.
func (s *VerificationService) issue(ctx context.Context, email string, minutes int) (*SendCodeResult, error) {
	plain, err := s.generateCode()
	if err != nil {
		s.logger.Error("failed to generate verification code", slog.String("error", err.Error()))
		return nil, models.ErrInternalServer
	}

	now := s.now()
	record := &models.VerificationCode{
		Email:     email,
		Code:      plain,
		ExpiresAt: now.Add(time.Duration(minutes) * time.Minute),
		CreatedAt: now,
		UpdatedAt: now,
	}

	var created *models.VerificationCode
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.codeRepo.InvalidateUnused(ctx, email, now); err != nil {
			return err
		}
		var err error
		created, err = s.codeRepo.Create(ctx, record)
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.logger.Info("concurrent verification code issue",
				slog.String("email", pkglogger.SanitizedEmail(email)))
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to issue verification code", slog.String("error", err.Error()))
		return nil, models.ErrInternalServer
	}

	// The code stays issued even when delivery fails
	messageID, err := s.emailService.SendVerificationCode(ctx, email, plain, created.ExpiresAt)
	if err != nil {
		s.logger.Warn("failed to deliver verification code",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.String("code_id", created.ID),
			slog.String("error", err.Error()))
	}

	s.audit.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventCodeIssued,
		Email:     email,
		Success:   true,
		Metadata: map[string]string{
			"code_id":    created.ID,
			"message_id": messageID,
			"delivered":  fmt.Sprintf("%t", err == nil),
		},
	})

	expiresAt := created.ExpiresAt
	return &SendCodeResult{
		Success:   true,
		Message:   "Verification code sent",
		ExpiresAt: &expiresAt,
		CodeID:    created.ID,
	}, nil
}

// Verify redeems code for email and activates the owning user if needed.
// Marking the code used and activating the user share one transaction.
func (s *VerificationService) Verify(ctx context.Context, email, code string) (*VerifyCodeResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	code = NormalizeCode(code)
	now := s.now()

	record, err := s.codeRepo.GetByEmailAndCode(ctx, email, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditRejected(ctx, email, "invalid_code")
			return nil, models.ErrCodeInvalid
		}
		s.logger.Error("failed to load verification code", slog.String("error", err.Error()))
		return nil, models.ErrInternalServer
	}

	if record.IsUsed {
		s.auditRejected(ctx, email, "code_used")
		return nil, models.ErrCodeUsed
	}
	if record.IsExpired(now) {
		s.auditRejected(ctx, email, "code_expired")
		return nil, models.ErrCodeExpired
	}

	var activated bool
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.codeRepo.MarkUsed(ctx, record.ID, now); err != nil {
			return err
		}
		var err error
		activated, err = s.userRepo.ActivateByEmail(ctx, email, now)
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrCodeUsed) {
			s.auditRejected(ctx, email, "code_used")
			return nil, models.ErrCodeUsed
		}
		s.logger.Error("failed to redeem verification code", slog.String("error", err.Error()))
		return nil, models.ErrInternalServer
	}

	s.audit.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventCodeVerified,
		Email:     email,
		Success:   true,
		Metadata:  map[string]string{"code_id": record.ID},
	})
	if activated {
		s.audit.Log(ctx, pkglogger.AuditEvent{
			EventType: pkglogger.EventUserActivated,
			Email:     email,
			Success:   true,
		})
	}

	return &VerifyCodeResult{
		Success:       true,
		Message:       "Email verified successfully",
		UserActivated: activated,
	}, nil
}

func (s *VerificationService) auditRejected(ctx context.Context, email, reason string) {
	s.audit.Log(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventCodeRejected,
		Email:         email,
		FailureReason: reason,
	})
}

// CleanupExpired deletes codes whose expiry has passed and returns how many were removed
func (s *VerificationService) CleanupExpired(ctx context.Context) (int64, error) {
	deleted, err := s.codeRepo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		s.audit.Log(ctx, pkglogger.AuditEvent{
			EventType: pkglogger.EventExpiredCodesPurge,
			Success:   true,
			Metadata:  map[string]string{"deleted": fmt.Sprintf("%d", deleted)},
		})
	}

	return deleted, nil
}
