package routes

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/handlers"
	"github.com/BradenHooton/sentinel/internal/middleware"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticUsers map[string]*models.User

func (s staticUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, models.ErrNotFound
}

type stubCredentials struct{}

func (stubCredentials) Unlock(ctx context.Context, email string) (*services.CredentialStatus, error) {
	return &services.CredentialStatus{Credential: &models.Credential{Email: email}, State: models.CredentialStateActiveUnlocked}, nil
}

func (stubCredentials) Status(ctx context.Context, email string) (*services.CredentialStatus, error) {
	return nil, models.ErrUserNotFound
}

type stubCleaner struct{}

func (stubCleaner) CleanupExpired(ctx context.Context) (int64, error) { return 2, nil }

func newTestRouter(t *testing.T) (http.Handler, *auth.TokenManager, staticUsers) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	tm := auth.NewHMACTokenManager("a-test-secret-of-sufficient-size", auth.TokenConfig{
		AccessTTL: time.Hour, RefreshTTL: 2 * time.Hour, RememberMeAccessTTL: time.Hour, RememberMeRefreshTTL: 2 * time.Hour,
	})
	users := staticUsers{
		"admin-1": {ID: "admin-1", Email: "admin@example.com", Role: models.RoleAdmin, IsActive: true},
		"user-1":  {ID: "user-1", Email: "user@example.com", Role: models.RoleUser, IsActive: true},
	}

	router := chi.NewRouter()
	RegisterRoutes(router, Handlers{
		Auth:         handlers.NewAuthHandler(nil),
		Verification: handlers.NewVerificationHandler(nil),
		Admin:        handlers.NewAdminHandler(stubCredentials{}, stubCleaner{}, logger),
	}, tm, users, middleware.DefaultRateLimits(), logger)

	return router, tm, users
}

func bearer(t *testing.T, tm *auth.TokenManager, user *models.User) string {
	t.Helper()
	token, err := tm.Sign(models.PayloadFromUser(user), 0)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAdminRoutes_RequireAdminRole(t *testing.T) {
	router, tm, users := newTestRouter(t)

	tests := []struct {
		name       string
		auth       string
		wantStatus int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"regular user", bearer(t, tm, users["user-1"]), http.StatusForbidden},
		{"admin", bearer(t, tm, users["admin-1"]), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/admin/verification-codes/cleanup", nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAdminRoutes_Unlock(t *testing.T) {
	router, tm, users := newTestRouter(t)

	req := httptest.NewRequest("POST", "/admin/users/unlock", strings.NewReader(`{"email":"user@example.com"}`))
	req.Header.Set("Authorization", bearer(t, tm, users["admin-1"]))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ACTIVE-UNLOCKED"`)
}

func TestPasswordResetRoutesAreStubs(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for _, path := range []string{"/auth/forgot-password", "/auth/reset-password"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", path, strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusNotImplemented, w.Code, path)
	}
}
