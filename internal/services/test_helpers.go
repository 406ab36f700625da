package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc               func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc            func(ctx context.Context, email string) (*models.User, error)
	CreateFunc                func(ctx context.Context, user *models.User) (*models.User, error)
	RecordFailedLoginFunc     func(ctx context.Context, id string, policy models.LockoutPolicy, now time.Time) (*models.User, error)
	RecordSuccessfulLoginFunc func(ctx context.Context, id string, now time.Time) (*models.User, error)
	UnlockByEmailFunc         func(ctx context.Context, email string, now time.Time) (*models.User, error)
	ActivateByEmailFunc       func(ctx context.Context, email string, now time.Time) (bool, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) RecordFailedLogin(ctx context.Context, id string, policy models.LockoutPolicy, now time.Time) (*models.User, error) {
	if m.RecordFailedLoginFunc != nil {
		return m.RecordFailedLoginFunc(ctx, id, policy, now)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) (*models.User, error) {
	if m.RecordSuccessfulLoginFunc != nil {
		return m.RecordSuccessfulLoginFunc(ctx, id, now)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UnlockByEmail(ctx context.Context, email string, now time.Time) (*models.User, error) {
	if m.UnlockByEmailFunc != nil {
		return m.UnlockByEmailFunc(ctx, email, now)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) ActivateByEmail(ctx context.Context, email string, now time.Time) (bool, error) {
	if m.ActivateByEmailFunc != nil {
		return m.ActivateByEmailFunc(ctx, email, now)
	}
	return false, nil
}

// MockVerificationCodeRepository implements VerificationCodeRepository for testing
type MockVerificationCodeRepository struct {
	InvalidateUnusedFunc  func(ctx context.Context, email string, now time.Time) (int64, error)
	CreateFunc            func(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error)
	GetLatestActiveFunc   func(ctx context.Context, email string, now time.Time) (*models.VerificationCode, error)
	GetByEmailAndCodeFunc func(ctx context.Context, email, code string) (*models.VerificationCode, error)
	MarkUsedFunc          func(ctx context.Context, id string, now time.Time) (*models.VerificationCode, error)
	DeleteExpiredFunc     func(ctx context.Context, now time.Time) (int64, error)
}

func (m *MockVerificationCodeRepository) InvalidateUnused(ctx context.Context, email string, now time.Time) (int64, error) {
	if m.InvalidateUnusedFunc != nil {
		return m.InvalidateUnusedFunc(ctx, email, now)
	}
	return 0, nil
}

func (m *MockVerificationCodeRepository) Create(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, code)
	}
	if code.ID == "" {
		code.ID = "code_123"
	}
	return code, nil
}

func (m *MockVerificationCodeRepository) GetLatestActive(ctx context.Context, email string, now time.Time) (*models.VerificationCode, error) {
	if m.GetLatestActiveFunc != nil {
		return m.GetLatestActiveFunc(ctx, email, now)
	}
	return nil, models.ErrNotFound
}

func (m *MockVerificationCodeRepository) GetByEmailAndCode(ctx context.Context, email, code string) (*models.VerificationCode, error) {
	if m.GetByEmailAndCodeFunc != nil {
		return m.GetByEmailAndCodeFunc(ctx, email, code)
	}
	return nil, models.ErrNotFound
}

func (m *MockVerificationCodeRepository) MarkUsed(ctx context.Context, id string, now time.Time) (*models.VerificationCode, error) {
	if m.MarkUsedFunc != nil {
		return m.MarkUsedFunc(ctx, id, now)
	}
	return &models.VerificationCode{ID: id, IsUsed: true, UsedAt: &now}, nil
}

func (m *MockVerificationCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx, now)
	}
	return 0, nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendVerificationCodeFunc func(ctx context.Context, email, code string, expiresAt time.Time) (string, error)
}

func (m *MockEmailService) SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) (string, error) {
	if m.SendVerificationCodeFunc != nil {
		return m.SendVerificationCodeFunc(ctx, email, code, expiresAt)
	}
	return "msg_123", nil
}

// MockAuthenticator implements Authenticator for testing
type MockAuthenticator struct {
	AuthenticateFunc func(ctx context.Context, email, password string) (*models.User, error)
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, email, password)
	}
	return nil, models.ErrInvalidCredentials
}

// MockCodeSender implements CodeSender for testing
type MockCodeSender struct {
	SendFunc func(ctx context.Context, email string, expirationMinutes int) (*SendCodeResult, error)
}

func (m *MockCodeSender) Send(ctx context.Context, email string, expirationMinutes int) (*SendCodeResult, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, email, expirationMinutes)
	}
	return &SendCodeResult{Success: true}, nil
}

// MockTransactor implements Transactor and records whether fn failed
type MockTransactor struct {
	mu         sync.Mutex
	calls      int
	rolledBack bool
}

func (t *MockTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.mu.Lock()
		t.rolledBack = true
		t.mu.Unlock()
		return err
	}
	return nil
}

// memoryUserStore is a stateful UserRepository applying the same guarded
// transitions as the SQL repository
type memoryUserStore struct {
	mu     sync.Mutex
	users  map[string]*models.User
	nextID int
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: make(map[string]*models.User)}
}

func (s *memoryUserStore) add(u *models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		s.nextID++
		u.ID = fmt.Sprintf("user-%d", s.nextID)
	}
	u.Email = strings.ToLower(u.Email)
	clone := *u
	s.users[u.ID] = &clone
	return u
}

// update applies fn to the stored user with id
func (s *memoryUserStore) update(id string, fn func(u *models.User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		fn(u)
	}
}

func (s *memoryUserStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

func (s *memoryUserStore) byEmail(email string) *models.User {
	for _, u := range s.users {
		if u.Email == strings.ToLower(email) {
			return u
		}
	}
	return nil
}

func (s *memoryUserStore) snapshot(u *models.User) *models.User {
	clone := *u
	return &clone
}

func (s *memoryUserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return s.snapshot(u), nil
}

func (s *memoryUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.byEmail(email)
	if u == nil {
		return nil, models.ErrNotFound
	}
	return s.snapshot(u), nil
}

func (s *memoryUserStore) Create(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	if s.byEmail(user.Email) != nil {
		s.mu.Unlock()
		return nil, models.ErrConflict
	}
	s.mu.Unlock()
	return s.add(user), nil
}

func (s *memoryUserStore) RecordFailedLogin(_ context.Context, id string, policy models.LockoutPolicy, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || !u.IsActive || u.IsLocked(now) {
		return nil, models.ErrNotFound
	}
	if u.LockedUntil != nil {
		// elapsed lock restarts the counter
		u.LoginAttempts = 0
		u.LockedUntil = nil
	}
	u.LoginAttempts++
	if u.LoginAttempts >= policy.MaxAttempts {
		lockedUntil := now.Add(policy.LockDuration)
		u.LockedUntil = &lockedUntil
	}
	u.UpdatedAt = now
	return s.snapshot(u), nil
}

func (s *memoryUserStore) RecordSuccessfulLogin(_ context.Context, id string, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || !u.IsActive || u.IsLocked(now) {
		return nil, models.ErrNotFound
	}
	u.LoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
	u.UpdatedAt = now
	return s.snapshot(u), nil
}

func (s *memoryUserStore) UnlockByEmail(_ context.Context, email string, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.byEmail(email)
	if u == nil {
		return nil, models.ErrNotFound
	}
	u.LoginAttempts = 0
	u.LockedUntil = nil
	u.UpdatedAt = now
	return s.snapshot(u), nil
}

func (s *memoryUserStore) ActivateByEmail(_ context.Context, email string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.byEmail(email)
	if u == nil || u.IsActive {
		return false, nil
	}
	u.IsActive = true
	u.VerificationPending = false
	u.UpdatedAt = now
	return true, nil
}

// memoryCodeStore is a stateful VerificationCodeRepository
type memoryCodeStore struct {
	mu     sync.Mutex
	codes  []*models.VerificationCode
	nextID int
}

func (s *memoryCodeStore) InvalidateUnused(_ context.Context, email string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.codes {
		if c.Email == strings.ToLower(email) && !c.IsUsed {
			markUsed(c, now)
			n++
		}
	}
	return n, nil
}

func (s *memoryCodeStore) Create(_ context.Context, code *models.VerificationCode) (*models.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.codes {
		if c.Email == strings.ToLower(code.Email) && !c.IsUsed {
			return nil, models.ErrConflict
		}
	}
	s.nextID++
	clone := *code
	clone.ID = fmt.Sprintf("code-%d", s.nextID)
	clone.Email = strings.ToLower(clone.Email)
	s.codes = append(s.codes, &clone)
	out := clone
	return &out, nil
}

// newestFirst returns matching codes ordered by created_at descending
func (s *memoryCodeStore) newestFirst(match func(*models.VerificationCode) bool) []*models.VerificationCode {
	var out []*models.VerificationCode
	for _, c := range s.codes {
		if match(c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *memoryCodeStore) GetLatestActive(_ context.Context, email string, now time.Time) (*models.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := s.newestFirst(func(c *models.VerificationCode) bool {
		return c.Email == strings.ToLower(email) && usableAt(c, now)
	})
	if len(found) == 0 {
		return nil, models.ErrNotFound
	}
	out := *found[0]
	return &out, nil
}

func (s *memoryCodeStore) GetByEmailAndCode(_ context.Context, email, code string) (*models.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := s.newestFirst(func(c *models.VerificationCode) bool {
		return c.Email == strings.ToLower(email) && c.Code == code
	})
	if len(found) == 0 {
		return nil, models.ErrNotFound
	}
	out := *found[0]
	return &out, nil
}

func (s *memoryCodeStore) MarkUsed(_ context.Context, id string, now time.Time) (*models.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.codes {
		if c.ID == id {
			if c.IsUsed {
				return nil, models.ErrCodeUsed
			}
			markUsed(c, now)
			out := *c
			return &out, nil
		}
	}
	return nil, models.ErrCodeUsed
}

func (s *memoryCodeStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.codes[:0]
	var n int64
	for _, c := range s.codes {
		if c.ExpiresAt.Before(now) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	s.codes = kept
	return n, nil
}

// usable counts codes for email that can still be redeemed at now
func (s *memoryCodeStore) usable(email string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.codes {
		if c.Email == strings.ToLower(email) && usableAt(c, now) {
			n++
		}
	}
	return n
}

func usableAt(c *models.VerificationCode, now time.Time) bool {
	return !c.IsUsed && !c.IsExpired(now)
}

func markUsed(c *models.VerificationCode, now time.Time) {
	c.IsUsed = true
	c.UsedAt = &now
	c.UpdatedAt = now
}

// testClock is a manually advanced clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
