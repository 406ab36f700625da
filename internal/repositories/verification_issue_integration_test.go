//go:build integration

package repositories_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/repositories"
	"github.com/BradenHooton/sentinel/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIssuingService(t *testing.T) *services.VerificationService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return services.NewVerificationService(
		repositories.NewVerificationCodeRepository(testDB.DB),
		repositories.NewUserRepository(testDB.DB),
		testDB.DB,
		&services.MockEmailService{},
		services.VerificationConfig{
			DefaultExpiryMinutes: 15,
			MinExpiryMinutes:     5,
			MaxExpiryMinutes:     60,
			ResendInterval:       time.Minute,
		},
		nil,
		logger,
	)
}

func TestVerificationService_ConcurrentIssueForSameEmail(t *testing.T) {
	tests := []struct {
		name   string
		resend [2]bool
	}{
		{"send and send", [2]bool{false, false}},
		{"send and resend", [2]bool{false, true}},
		{"resend and resend", [2]bool{true, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetTables(t)
			ctx := context.Background()
			seedUser(t, repositories.NewUserRepository(testDB.DB), "race@example.com", false)
			service := newIssuingService(t)

			for round := 0; round < 10; round++ {
				var wg sync.WaitGroup
				start := make(chan struct{})
				errs := make([]error, 2)
				for i := range errs {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						<-start
						if tt.resend[i] {
							_, errs[i] = service.Resend(ctx, "race@example.com", 0)
						} else {
							_, errs[i] = service.Send(ctx, "race@example.com", 0)
						}
					}(i)
				}
				close(start)
				wg.Wait()

				for _, err := range errs {
					if err == nil {
						continue
					}
					assert.NotErrorIs(t, err, models.ErrInternalServer)
					assert.NotErrorIs(t, err, models.ErrConflict)
					assert.ErrorIs(t, err, models.ErrResendTooSoon)
				}

				var usable int
				require.NoError(t, testDB.DB.Pool.QueryRow(ctx,
					`SELECT COUNT(*) FROM verification_codes WHERE email = $1 AND is_used = false AND expires_at > NOW()`,
					"race@example.com").Scan(&usable))
				assert.Equal(t, 1, usable)
			}
		})
	}
}
