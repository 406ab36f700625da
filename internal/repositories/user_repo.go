package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/sentinel/internal/database"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, is_active, verification_pending,
	login_attempts, locked_until, last_login_at, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner is satisfied by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.Role, &user.IsActive, &user.VerificationPending,
		&user.LoginAttempts, &user.LockedUntil, &user.LastLoginAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

func (r *UserRepository) q(ctx context.Context) database.Querier {
	return database.QuerierFrom(ctx, r.pool)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.q(ctx).QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.q(ctx).QueryRow(ctx, query, strings.ToLower(email)))
}

// Create inserts the user. ID, role and timestamps are filled in when empty.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, is_active, verification_pending,
			login_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10)
		RETURNING ` + userColumns

	created, err := scanUserRow(r.q(ctx).QueryRow(ctx, query,
		user.ID, strings.ToLower(user.Email), user.PasswordHash, user.FirstName, user.LastName,
		user.Role, user.IsActive, user.VerificationPending,
		user.CreatedAt, user.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return created, nil
}

// RecordFailedLogin counts a failed password comparison in a single statement.
// An elapsed lock restarts the counter at 1; reaching policy.MaxAttempts sets
// locked_until = now + policy.LockDuration. Returns models.ErrNotFound when the
// user is missing, inactive or currently locked.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, id string, policy models.LockoutPolicy, now time.Time) (*models.User, error) {
	query := `
		UPDATE users SET
			login_attempts = CASE WHEN locked_until IS NOT NULL THEN 1 ELSE login_attempts + 1 END,
			locked_until = CASE
				WHEN (CASE WHEN locked_until IS NOT NULL THEN 1 ELSE login_attempts + 1 END) >= $2::int THEN $3::timestamptz
				ELSE NULL
			END,
			updated_at = $4::timestamptz
		WHERE id = $1 AND is_active AND (locked_until IS NULL OR locked_until <= $4::timestamptz)
		RETURNING ` + userColumns

	return scanUserRow(r.q(ctx).QueryRow(ctx, query, id, policy.MaxAttempts, now.Add(policy.LockDuration), now))
}

// RecordSuccessfulLogin resets the counter, clears the lock and stamps last_login_at.
// Returns models.ErrNotFound when the user is missing, inactive or currently locked.
func (r *UserRepository) RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) (*models.User, error) {
	query := `
		UPDATE users SET login_attempts = 0, locked_until = NULL, last_login_at = $2::timestamptz, updated_at = $2::timestamptz
		WHERE id = $1 AND is_active AND (locked_until IS NULL OR locked_until <= $2::timestamptz)
		RETURNING ` + userColumns

	return scanUserRow(r.q(ctx).QueryRow(ctx, query, id, now))
}

// UnlockByEmail clears lockout state regardless of the current state
func (r *UserRepository) UnlockByEmail(ctx context.Context, email string, now time.Time) (*models.User, error) {
	query := `
		UPDATE users SET login_attempts = 0, locked_until = NULL, updated_at = $2
		WHERE email = $1
		RETURNING ` + userColumns

	return scanUserRow(r.q(ctx).QueryRow(ctx, query, strings.ToLower(email), now))
}

// ActivateByEmail activates an inactive user and clears verification_pending.
// Returns false without error when the user was already active or does not exist.
func (r *UserRepository) ActivateByEmail(ctx context.Context, email string, now time.Time) (bool, error) {
	query := `
		UPDATE users SET is_active = TRUE, verification_pending = FALSE, updated_at = $2
		WHERE email = $1 AND is_active = FALSE`

	tag, err := r.q(ctx).Exec(ctx, query, strings.ToLower(email), now)
	if err != nil {
		return false, fmt.Errorf("failed to activate user: %w", database.MapPostgresError(err))
	}

	return tag.RowsAffected() == 1, nil
}
