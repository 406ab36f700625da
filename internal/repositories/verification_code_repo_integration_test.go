//go:build integration

package repositories_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issue(t *testing.T, repo *repositories.VerificationCodeRepository, email, code string, now time.Time, ttl time.Duration) *models.VerificationCode {
	t.Helper()
	ctx := context.Background()

	var created *models.VerificationCode
	err := testDB.DB.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := repo.InvalidateUnused(ctx, email, now); err != nil {
			return err
		}
		var err error
		created, err = repo.Create(ctx, &models.VerificationCode{
			Email:     email,
			Code:      code,
			ExpiresAt: now.Add(ttl),
			CreatedAt: now,
		})
		return err
	})
	require.NoError(t, err)
	return created
}

func TestVerificationCodeRepository_IssueInvalidatesPrevious(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := repositories.NewVerificationCodeRepository(testDB.DB)
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := issue(t, repo, "a@b.com", "111111", now, 15*time.Minute)
	second := issue(t, repo, "a@b.com", "222222", now.Add(time.Second), 15*time.Minute)

	latest, err := repo.GetLatestActive(ctx, "a@b.com", now.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	old, err := repo.GetByEmailAndCode(ctx, "a@b.com", "111111")
	require.NoError(t, err)
	assert.Equal(t, first.ID, old.ID)
	assert.True(t, old.IsUsed)

	var usable int
	require.NoError(t, testDB.DB.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM verification_codes WHERE email = $1 AND is_used = FALSE`, "a@b.com").Scan(&usable))
	assert.Equal(t, 1, usable)
}

func TestVerificationCodeRepository_GetLatestActive_IgnoresExpired(t *testing.T) {
	resetTables(t)
	repo := repositories.NewVerificationCodeRepository(testDB.DB)
	now := time.Now().UTC()

	issue(t, repo, "a@b.com", "123456", now, time.Minute)

	_, err := repo.GetLatestActive(context.Background(), "a@b.com", now.Add(2*time.Minute))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestVerificationCodeRepository_MarkUsed_OnlyOnce(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := repositories.NewVerificationCodeRepository(testDB.DB)
	now := time.Now().UTC()

	code := issue(t, repo, "a@b.com", "123456", now, 15*time.Minute)

	var successes, alreadyUsed int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.MarkUsed(ctx, code.ID, now)
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
			case errors.Is(err, models.ErrCodeUsed):
				atomic.AddInt32(&alreadyUsed, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes)
	assert.Equal(t, int32(9), alreadyUsed)
}

func TestVerificationCodeRepository_DeleteExpired(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := repositories.NewVerificationCodeRepository(testDB.DB)
	now := time.Now().UTC()

	issue(t, repo, "old@b.com", "111111", now.Add(-time.Hour), 5*time.Minute)
	issue(t, repo, "new@b.com", "222222", now, 15*time.Minute)

	deleted, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetByEmailAndCode(ctx, "old@b.com", "111111")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = repo.GetByEmailAndCode(ctx, "new@b.com", "222222")
	assert.NoError(t, err)
}

func TestVerificationCodeRepository_TransactionRollback(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := repositories.NewVerificationCodeRepository(testDB.DB)
	now := time.Now().UTC()

	issue(t, repo, "a@b.com", "111111", now, 15*time.Minute)

	boom := errors.New("notifier exploded")
	err := testDB.DB.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := repo.InvalidateUnused(ctx, "a@b.com", now); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// The invalidation was rolled back
	_, err = repo.GetLatestActive(ctx, "a@b.com", now)
	assert.NoError(t, err)
}
