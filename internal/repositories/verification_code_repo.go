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

const verificationCodeColumns = `id, email, code, is_used, used_at, expires_at, created_at, updated_at`

// VerificationCodeRepository handles verification code data access
type VerificationCodeRepository struct {
	pool *pgxpool.Pool
}

// NewVerificationCodeRepository creates a new VerificationCodeRepository
func NewVerificationCodeRepository(db *database.DB) *VerificationCodeRepository {
	return &VerificationCodeRepository{pool: db.Pool}
}

func scanCodeRow(row rowScanner) (*models.VerificationCode, error) {
	var code models.VerificationCode

	err := row.Scan(
		&code.ID, &code.Email, &code.Code, &code.IsUsed, &code.UsedAt,
		&code.ExpiresAt, &code.CreatedAt, &code.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &code, nil
}

func (r *VerificationCodeRepository) q(ctx context.Context) database.Querier {
	return database.QuerierFrom(ctx, r.pool)
}

// InvalidateUnused marks every unused code for email as used
func (r *VerificationCodeRepository) InvalidateUnused(ctx context.Context, email string, now time.Time) (int64, error) {
	query := `
		UPDATE verification_codes SET is_used = TRUE, used_at = $2, updated_at = $2
		WHERE email = $1 AND is_used = FALSE`

	tag, err := r.q(ctx).Exec(ctx, query, strings.ToLower(email), now)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate verification codes: %w", database.MapPostgresError(err))
	}

	return tag.RowsAffected(), nil
}

// Create inserts a new code. Call InvalidateUnused first in the same transaction.
func (r *VerificationCodeRepository) Create(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error) {
	if code.ID == "" {
		code.ID = uuid.New().String()
	}
	if code.UpdatedAt.IsZero() {
		code.UpdatedAt = code.CreatedAt
	}

	query := `
		INSERT INTO verification_codes (id, email, code, is_used, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, $4, $5, $6)
		RETURNING ` + verificationCodeColumns

	created, err := scanCodeRow(r.q(ctx).QueryRow(ctx, query,
		code.ID, strings.ToLower(code.Email), code.Code, code.ExpiresAt, code.CreatedAt, code.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create verification code: %w", err)
	}

	return created, nil
}

// GetLatestActive returns the newest unused code for email that has not expired at now
func (r *VerificationCodeRepository) GetLatestActive(ctx context.Context, email string, now time.Time) (*models.VerificationCode, error) {
	query := `
		SELECT ` + verificationCodeColumns + `
		FROM verification_codes
		WHERE email = $1 AND is_used = FALSE AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1`

	return scanCodeRow(r.q(ctx).QueryRow(ctx, query, strings.ToLower(email), now))
}

// GetByEmailAndCode returns the newest record matching email and code exactly, used or not
func (r *VerificationCodeRepository) GetByEmailAndCode(ctx context.Context, email, code string) (*models.VerificationCode, error) {
	query := `
		SELECT ` + verificationCodeColumns + `
		FROM verification_codes
		WHERE email = $1 AND code = $2
		ORDER BY created_at DESC
		LIMIT 1`

	return scanCodeRow(r.q(ctx).QueryRow(ctx, query, strings.ToLower(email), code))
}

// MarkUsed consumes the code. Returns models.ErrCodeUsed when it was already used,
// so only one of several concurrent redemptions succeeds.
func (r *VerificationCodeRepository) MarkUsed(ctx context.Context, id string, now time.Time) (*models.VerificationCode, error) {
	query := `
		UPDATE verification_codes SET is_used = TRUE, used_at = $2, updated_at = $2
		WHERE id = $1 AND is_used = FALSE
		RETURNING ` + verificationCodeColumns

	code, err := scanCodeRow(r.q(ctx).QueryRow(ctx, query, id, now))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrCodeUsed
		}
		return nil, fmt.Errorf("failed to mark verification code used: %w", err)
	}

	return code, nil
}

// DeleteExpired removes codes that expired before now
func (r *VerificationCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.q(ctx).Exec(ctx, `DELETE FROM verification_codes WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired verification codes: %w", database.MapPostgresError(err))
	}

	return tag.RowsAffected(), nil
}
