package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/models"
	pkgauth "github.com/BradenHooton/sentinel/pkg/auth"
	pkglogger "github.com/BradenHooton/sentinel/pkg/logger"
)

// UserRepository defines the user store operations the services depend on
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	RecordFailedLogin(ctx context.Context, id string, policy models.LockoutPolicy, now time.Time) (*models.User, error)
	RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) (*models.User, error)
	UnlockByEmail(ctx context.Context, email string, now time.Time) (*models.User, error)
	ActivateByEmail(ctx context.Context, email string, now time.Time) (bool, error)
}

// CredentialStatus is the lockout view of an account returned to administrators
type CredentialStatus struct {
	Credential         *models.Credential     `json:"credential"`
	State              models.CredentialState `json:"state"`
	IsLocked           bool                   `json:"isLocked"`
	MinutesUntilUnlock int                    `json:"minutesUntilUnlock"`
}

// CredentialService runs the account lockout state machine
type CredentialService struct {
	userRepo  UserRepository
	hasher    *pkgauth.PasswordHasher
	policy    models.LockoutPolicy
	timing    *auth.TimingDelay
	audit     *pkglogger.AuditLogger
	logger    *slog.Logger
	now       func() time.Time
	dummyHash string
}

// NewCredentialService creates a new CredentialService
func NewCredentialService(
	userRepo UserRepository,
	hasher *pkgauth.PasswordHasher,
	policy models.LockoutPolicy,
	timing *auth.TimingDelay,
	audit *pkglogger.AuditLogger,
	logger *slog.Logger,
) *CredentialService {
	s := &CredentialService{
		userRepo: userRepo,
		hasher:   hasher,
		policy:   policy,
		timing:   timing,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}

	// Compared against on unknown emails so both failure paths pay for a bcrypt comparison
	if dummy, err := hasher.Hash("sentinel-timing-equalizer"); err == nil {
		s.dummyHash = dummy
	}

	return s
}

// SetClock overrides the time source used for lock decisions
func (s *CredentialService) SetClock(now func() time.Time) {
	s.now = now
}

// Authenticate checks the password and applies the lockout state machine.
// Returns models.ErrInvalidCredentials, models.ErrAccountInactive or a
// *models.AccountLockedError on failure.
func (s *CredentialService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	start := time.Now()
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			if s.dummyHash != "" {
				_ = s.hasher.Compare(s.dummyHash, password)
			}
			s.auditFailure(ctx, "", email, "unknown_email")
			s.timing.PadFrom(ctx, start)
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to load credential", slog.String("error", err.Error()))
		return nil, models.ErrInternalServer
	}

	now := s.now()

	if !user.IsActive {
		s.auditFailure(ctx, user.ID, email, "account_inactive")
		s.timing.PadFrom(ctx, start)
		return nil, models.ErrAccountInactive
	}

	if user.IsLocked(now) {
		s.auditFailure(ctx, user.ID, email, "account_locked")
		return nil, models.NewAccountLockedError(*user.LockedUntil, now)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if !errors.Is(err, pkgauth.ErrPasswordMismatch) {
			s.logger.Error("failed to compare password hash",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()))
			return nil, models.ErrInternalServer
		}

		err = s.recordFailure(ctx, user, now)
		s.timing.PadFrom(ctx, start)
		return nil, err
	}

	updated, err := s.userRepo.RecordSuccessfulLogin(ctx, user.ID, now)
	if errors.Is(err, models.ErrNotFound) {
		// Locked or deactivated since it was read
		return nil, s.currentStateError(ctx, user.ID, now)
	}
	if err != nil {
		s.logger.Error("failed to record successful login",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()))
		return nil, models.ErrInternalServer
	}

	s.audit.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLoginSuccess,
		UserID:    updated.ID,
		Email:     updated.Email,
		Success:   true,
	})

	return updated, nil
}

func (s *CredentialService) recordFailure(ctx context.Context, user *models.User, now time.Time) error {
	updated, err := s.userRepo.RecordFailedLogin(ctx, user.ID, s.policy, now)
	if errors.Is(err, models.ErrNotFound) {
		return s.currentStateError(ctx, user.ID, now)
	}
	if err != nil {
		s.logger.Error("failed to record failed login",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()))
		return models.ErrInternalServer
	}

	if updated.IsLocked(now) {
		s.audit.Log(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventAccountLocked,
			UserID:        updated.ID,
			Email:         updated.Email,
			FailureReason: "max_attempts_reached",
			Metadata: map[string]string{
				"attempts":     strconv.Itoa(updated.LoginAttempts),
				"locked_until": updated.LockedUntil.UTC().Format(time.RFC3339),
			},
		})
		return models.NewAccountLockedError(*updated.LockedUntil, now)
	}

	s.audit.Log(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventLoginFailure,
		UserID:        updated.ID,
		Email:         updated.Email,
		FailureReason: "invalid_password",
		Metadata:      map[string]string{"attempts": strconv.Itoa(updated.LoginAttempts)},
	})
	return models.ErrInvalidCredentials
}

// currentStateError re-reads the record after a guarded update matched no row
func (s *CredentialService) currentStateError(ctx context.Context, id string, now time.Time) error {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidCredentials
		}
		s.logger.Error("failed to re-read credential", slog.String("user_id", id), slog.String("error", err.Error()))
		return models.ErrInternalServer
	}

	switch models.CredentialFromUser(user).State(now) {
	case models.CredentialStateInactive:
		return models.ErrAccountInactive
	case models.CredentialStateActiveLocked:
		return models.NewAccountLockedError(*user.LockedUntil, now)
	default:
		return models.ErrInvalidCredentials
	}
}

func (s *CredentialService) auditFailure(ctx context.Context, userID, email, reason string) {
	s.audit.Log(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventLoginFailure,
		UserID:        userID,
		Email:         email,
		FailureReason: reason,
	})
}

// Unlock clears lockout state for the account regardless of its current state
func (s *CredentialService) Unlock(ctx context.Context, email string) (*CredentialStatus, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	now := s.now()

	user, err := s.userRepo.UnlockByEmail(ctx, email, now)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUserNotFound
		}
		s.logger.Error("failed to unlock account", slog.String("error", err.Error()))
		return nil, models.ErrInternalServer
	}

	s.audit.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventAccountUnlocked,
		UserID:    user.ID,
		Email:     user.Email,
		Success:   true,
	})

	return s.statusOf(user, now), nil
}

// Status reports the lockout state of the account
func (s *CredentialService) Status(ctx context.Context, email string) (*CredentialStatus, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUserNotFound
		}
		s.logger.Error("failed to load credential", slog.String("error", err.Error()))
		return nil, models.ErrInternalServer
	}

	return s.statusOf(user, s.now()), nil
}

func (s *CredentialService) statusOf(user *models.User, now time.Time) *CredentialStatus {
	cred := models.CredentialFromUser(user)
	return &CredentialStatus{
		Credential:         cred,
		State:              cred.State(now),
		IsLocked:           cred.IsLocked(now),
		MinutesUntilUnlock: cred.MinutesUntilUnlock(now),
	}
}
