package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/services"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithUserContext adds a resolved user to the request context as AuthMiddleware would
func WithUserContext(req *http.Request, user *models.User) *http.Request {
	ctx := context.WithValue(req.Context(), auth.UserContextKey, user)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response and returns it
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.False(t, resp.Success)
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc       func(ctx context.Context, email, password string, rememberMe bool) (*services.LoginResponse, error)
	RefreshFunc     func(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	VerifyTokenFunc func(ctx context.Context, token string) (*services.VerifyTokenResponse, error)
	LogoutFunc      func(ctx context.Context, token string) (*services.LogoutResponse, error)
	RegisterFunc    func(ctx context.Context, input services.RegisterInput) (*services.RegisterResponse, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string, rememberMe bool) (*services.LoginResponse, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, email, password, rememberMe)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if m.RefreshFunc == nil {
		return nil, models.ErrTokenInvalid
	}
	return m.RefreshFunc(ctx, refreshToken)
}

func (m *MockAuthService) VerifyToken(ctx context.Context, token string) (*services.VerifyTokenResponse, error) {
	if m.VerifyTokenFunc == nil {
		return &services.VerifyTokenResponse{Valid: false}, nil
	}
	return m.VerifyTokenFunc(ctx, token)
}

func (m *MockAuthService) Logout(ctx context.Context, token string) (*services.LogoutResponse, error) {
	if m.LogoutFunc == nil {
		return &services.LogoutResponse{Success: true, Message: "Logged out successfully"}, nil
	}
	return m.LogoutFunc(ctx, token)
}

func (m *MockAuthService) Register(ctx context.Context, input services.RegisterInput) (*services.RegisterResponse, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, input)
}

// MockVerificationService implements VerificationServiceInterface for testing
type MockVerificationService struct {
	SendFunc   func(ctx context.Context, email string, expirationMinutes int) (*services.SendCodeResult, error)
	ResendFunc func(ctx context.Context, email string, expirationMinutes int) (*services.SendCodeResult, error)
	VerifyFunc func(ctx context.Context, email, code string) (*services.VerifyCodeResult, error)
}

func (m *MockVerificationService) Send(ctx context.Context, email string, expirationMinutes int) (*services.SendCodeResult, error) {
	if m.SendFunc == nil {
		return &services.SendCodeResult{Success: true}, nil
	}
	return m.SendFunc(ctx, email, expirationMinutes)
}

func (m *MockVerificationService) Resend(ctx context.Context, email string, expirationMinutes int) (*services.SendCodeResult, error) {
	if m.ResendFunc == nil {
		return &services.SendCodeResult{Success: true}, nil
	}
	return m.ResendFunc(ctx, email, expirationMinutes)
}

func (m *MockVerificationService) Verify(ctx context.Context, email, code string) (*services.VerifyCodeResult, error) {
	if m.VerifyFunc == nil {
		return nil, models.ErrCodeInvalid
	}
	return m.VerifyFunc(ctx, email, code)
}

// MockCredentialAdmin implements CredentialAdminInterface for testing
type MockCredentialAdmin struct {
	UnlockFunc func(ctx context.Context, email string) (*services.CredentialStatus, error)
	StatusFunc func(ctx context.Context, email string) (*services.CredentialStatus, error)
}

func (m *MockCredentialAdmin) Unlock(ctx context.Context, email string) (*services.CredentialStatus, error) {
	if m.UnlockFunc == nil {
		return nil, models.ErrUserNotFound
	}
	return m.UnlockFunc(ctx, email)
}

func (m *MockCredentialAdmin) Status(ctx context.Context, email string) (*services.CredentialStatus, error) {
	if m.StatusFunc == nil {
		return nil, models.ErrUserNotFound
	}
	return m.StatusFunc(ctx, email)
}

// MockCodeCleaner implements CodeCleaner for testing
type MockCodeCleaner struct {
	CleanupExpiredFunc func(ctx context.Context) (int64, error)
}

func (m *MockCodeCleaner) CleanupExpired(ctx context.Context) (int64, error) {
	if m.CleanupExpiredFunc == nil {
		return 0, nil
	}
	return m.CleanupExpiredFunc(ctx)
}
