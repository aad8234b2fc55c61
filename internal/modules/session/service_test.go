package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"portal/internal/domain"
	"portal/internal/repository"
)

// Mock account reader implementing the interface
type mockAccountReader struct {
	mock.Mock
}

func (m *mockAccountReader) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountReader) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

// Mock token store
type mockTokenStore struct {
	mock.Mock
}

func (m *mockTokenStore) GetByCurrentHash(ctx context.Context, hash string) (*domain.AuthState, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthState), args.Error(1)
}

func (m *mockTokenStore) FindStale(ctx context.Context, hash string) (*domain.AuthState, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthState), args.Error(1)
}

func (m *mockTokenStore) InstallFamily(ctx context.Context, accountID int64, tokenHash string, issuedAt time.Time) error {
	args := m.Called(ctx, accountID, tokenHash, issuedAt)
	return args.Error(0)
}

func (m *mockTokenStore) Rotate(ctx context.Context, accountID int64, oldHash, newHash, originHint string) (*domain.AuthState, error) {
	args := m.Called(ctx, accountID, oldHash, newHash, originHint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthState), args.Error(1)
}

func (m *mockTokenStore) RevokeAll(ctx context.Context, accountID int64) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

// Mock session registrar
type mockRegistrar struct {
	mock.Mock
}

func (m *mockRegistrar) TryCreateSession(ctx context.Context, accountID int64, desc domain.SessionDescriptor) (bool, *domain.SessionDescriptor, error) {
	args := m.Called(ctx, accountID, desc)
	var existing *domain.SessionDescriptor
	if args.Get(1) != nil {
		existing = args.Get(1).(*domain.SessionDescriptor)
	}
	return args.Bool(0), existing, args.Error(2)
}

func (m *mockRegistrar) ForceReplaceSession(ctx context.Context, accountID int64, desc domain.SessionDescriptor) (*domain.SessionDescriptor, error) {
	args := m.Called(ctx, accountID, desc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SessionDescriptor), args.Error(1)
}

func (m *mockRegistrar) TouchSession(ctx context.Context, accountID int64, sessionID string, at time.Time) error {
	args := m.Called(ctx, accountID, sessionID, at)
	return args.Error(0)
}

func (m *mockRegistrar) TouchAccount(ctx context.Context, accountID int64, at time.Time) error {
	args := m.Called(ctx, accountID, at)
	return args.Error(0)
}

func (m *mockRegistrar) TerminateSession(ctx context.Context, accountID int64) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

// Mock JWT service
type mockJWTService struct {
	mock.Mock
}

func (m *mockJWTService) GenerateToken(accountID int64, role string) (string, error) {
	args := m.Called(accountID, role)
	return args.String(0), args.Error(1)
}

// Mock event notifier
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SessionEvent(accountID int64, event string) {
	m.Called(accountID, event)
}

const testPepper = "unit-test-pepper"

type testDeps struct {
	accounts *mockAccountReader
	tokens   *mockTokenStore
	sessions *mockRegistrar
	jwtSvc   *mockJWTService
	notifier *mockNotifier
}

func newTestService(strictCheck bool) (*Service, *testDeps) {
	d := &testDeps{
		accounts: new(mockAccountReader),
		tokens:   new(mockTokenStore),
		sessions: new(mockRegistrar),
		jwtSvc:   new(mockJWTService),
		notifier: new(mockNotifier),
	}
	svc := NewService(d.accounts, d.tokens, d.sessions, d.jwtSvc, d.notifier, testPepper, strictCheck)
	return svc, d
}

func activeAccount(id int64, password string) *domain.Account {
	hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return &domain.Account{
		ID:           id,
		Email:        "user@example.com",
		PasswordHash: string(hashed),
		Role:         domain.RoleUser,
		Status:       domain.StatusActive,
	}
}

func TestService_Login_Success(t *testing.T) {
	svc, d := newTestService(false)

	account := activeAccount(10, "password123")
	d.accounts.On("GetByEmail", mock.Anything, "user@example.com").Return(account, nil)
	d.sessions.On("TryCreateSession", mock.Anything, int64(10), mock.Anything).Return(true, nil, nil)
	d.tokens.On("InstallFamily", mock.Anything, int64(10), mock.Anything, mock.Anything).Return(nil)
	d.jwtSvc.On("GenerateToken", int64(10), "user").Return("access-jwt", nil)
	d.notifier.On("SessionEvent", int64(10), EventLogin).Return()

	result, err := svc.Login(context.Background(), "user@example.com", "password123", "203.0.113.1")

	assert.NoError(t, err)
	assert.Equal(t, "access-jwt", result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.False(t, result.PreviousSessionTerminated)

	d.sessions.AssertExpectations(t)
	d.tokens.AssertExpectations(t)
	d.notifier.AssertExpectations(t)
}

func TestService_Login_ActiveSessionConflict(t *testing.T) {
	svc, d := newTestService(false)

	account := activeAccount(10, "password123")
	existing := &domain.SessionDescriptor{SessionID: "old-session", LoginTime: time.Now()}
	d.accounts.On("GetByEmail", mock.Anything, "user@example.com").Return(account, nil)
	d.sessions.On("TryCreateSession", mock.Anything, int64(10), mock.Anything).Return(false, existing, nil)

	_, err := svc.Login(context.Background(), "user@example.com", "password123", "")

	assert.ErrorIs(t, err, ErrActiveSessionConflict)
	// No tokens may be issued on conflict.
	d.tokens.AssertNotCalled(t, "InstallFamily", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	d.jwtSvc.AssertNotCalled(t, "GenerateToken", mock.Anything, mock.Anything)
}

func TestService_Login_TokenIssueFailureReleasesSession(t *testing.T) {
	svc, d := newTestService(false)

	account := activeAccount(10, "password123")
	d.accounts.On("GetByEmail", mock.Anything, "user@example.com").Return(account, nil)
	d.sessions.On("TryCreateSession", mock.Anything, int64(10), mock.Anything).Return(true, nil, nil)
	d.tokens.On("InstallFamily", mock.Anything, int64(10), mock.Anything, mock.Anything).Return(errors.New("storage down"))
	d.sessions.On("TerminateSession", mock.Anything, int64(10)).Return(nil)

	_, err := svc.Login(context.Background(), "user@example.com", "password123", "")

	assert.Error(t, err)
	// The session must be released, otherwise every later plain login
	// conflicts against a session that holds no tokens.
	d.sessions.AssertCalled(t, "TerminateSession", mock.Anything, int64(10))
	d.notifier.AssertNotCalled(t, "SessionEvent", mock.Anything, mock.Anything)
}

func TestService_Login_WrongPassword(t *testing.T) {
	svc, d := newTestService(false)

	account := activeAccount(10, "password123")
	d.accounts.On("GetByEmail", mock.Anything, "user@example.com").Return(account, nil)

	_, err := svc.Login(context.Background(), "user@example.com", "not-the-password", "")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
	d.sessions.AssertNotCalled(t, "TryCreateSession", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Login_DisabledBeforePasswordCheck(t *testing.T) {
	svc, d := newTestService(false)

	account := activeAccount(10, "password123")
	account.Status = domain.StatusDisabled
	d.accounts.On("GetByEmail", mock.Anything, "user@example.com").Return(account, nil)

	// Even the correct password must not reveal more than the status.
	_, err := svc.Login(context.Background(), "user@example.com", "password123", "")

	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestService_Login_UnknownEmail(t *testing.T) {
	svc, d := newTestService(false)

	d.accounts.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, gorm.ErrRecordNotFound)

	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever", "")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_ForceLogin_ReplacesSession(t *testing.T) {
	svc, d := newTestService(false)

	account := activeAccount(10, "password123")
	previous := &domain.SessionDescriptor{SessionID: "old-session", LoginTime: time.Now().Add(-time.Hour)}
	d.accounts.On("GetByEmail", mock.Anything, "user@example.com").Return(account, nil)
	d.sessions.On("ForceReplaceSession", mock.Anything, int64(10), mock.Anything).Return(previous, nil)
	d.tokens.On("InstallFamily", mock.Anything, int64(10), mock.Anything, mock.Anything).Return(nil)
	d.jwtSvc.On("GenerateToken", int64(10), "user").Return("access-jwt", nil)
	d.notifier.On("SessionEvent", int64(10), EventForceLogin).Return()

	result, err := svc.ForceLogin(context.Background(), "user@example.com", "password123", "203.0.113.2")

	assert.NoError(t, err)
	assert.True(t, result.PreviousSessionTerminated)
	assert.NotEmpty(t, result.RefreshToken)
	d.sessions.AssertExpectations(t)
	d.notifier.AssertExpectations(t)
}

func TestService_Refresh_Success(t *testing.T) {
	svc, d := newTestService(false)

	raw := "raw-refresh-token"
	hash := hashTokenWithPepper(raw, testPepper)
	sessionID := "session-1"
	state := &domain.AuthState{AccountID: 10, CurrentTokenHash: &hash, SessionID: &sessionID}

	account := activeAccount(10, "password123")
	d.tokens.On("GetByCurrentHash", mock.Anything, hash).Return(state, nil)
	d.accounts.On("GetByID", mock.Anything, int64(10)).Return(account, nil)
	d.tokens.On("Rotate", mock.Anything, int64(10), hash, mock.Anything, "hint").Return(state, nil)
	d.sessions.On("TouchSession", mock.Anything, int64(10), sessionID, mock.Anything).Return(nil)
	d.jwtSvc.On("GenerateToken", int64(10), "user").Return("new-access", nil)

	result, err := svc.Refresh(context.Background(), raw, "hint")

	assert.NoError(t, err)
	assert.Equal(t, "new-access", result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.NotEqual(t, raw, result.RefreshToken)
	d.tokens.AssertExpectations(t)
	d.sessions.AssertExpectations(t)
}

func TestService_Refresh_StaleReuseKillsFamily(t *testing.T) {
	svc, d := newTestService(false)

	raw := "superseded-token"
	hash := hashTokenWithPepper(raw, testPepper)
	stale := &domain.AuthState{AccountID: 10}

	d.tokens.On("GetByCurrentHash", mock.Anything, hash).Return(nil, gorm.ErrRecordNotFound)
	d.tokens.On("FindStale", mock.Anything, hash).Return(stale, nil)
	d.tokens.On("RevokeAll", mock.Anything, int64(10)).Return(nil)
	d.sessions.On("TerminateSession", mock.Anything, int64(10)).Return(nil)
	d.notifier.On("SessionEvent", int64(10), EventReuseDetected).Return()

	_, err := svc.Refresh(context.Background(), raw, "")

	assert.ErrorIs(t, err, ErrSessionTerminated)
	d.tokens.AssertExpectations(t)
	d.sessions.AssertExpectations(t)
	d.notifier.AssertExpectations(t)
}

func TestService_Refresh_UnknownToken(t *testing.T) {
	svc, d := newTestService(false)

	raw := "never-issued"
	hash := hashTokenWithPepper(raw, testPepper)

	d.tokens.On("GetByCurrentHash", mock.Anything, hash).Return(nil, gorm.ErrRecordNotFound)
	d.tokens.On("FindStale", mock.Anything, hash).Return(nil, gorm.ErrRecordNotFound)

	_, err := svc.Refresh(context.Background(), raw, "")

	assert.ErrorIs(t, err, ErrInvalidToken)
	d.tokens.AssertNotCalled(t, "RevokeAll", mock.Anything, mock.Anything)
}

func TestService_Refresh_RotationRaceLost(t *testing.T) {
	svc, d := newTestService(false)

	raw := "contested-token"
	hash := hashTokenWithPepper(raw, testPepper)
	sessionID := "session-1"
	state := &domain.AuthState{AccountID: 10, CurrentTokenHash: &hash, SessionID: &sessionID}

	account := activeAccount(10, "password123")
	d.tokens.On("GetByCurrentHash", mock.Anything, hash).Return(state, nil)
	d.accounts.On("GetByID", mock.Anything, int64(10)).Return(account, nil)
	d.tokens.On("Rotate", mock.Anything, int64(10), hash, mock.Anything, "").Return(nil, repository.ErrTokenStale)
	d.tokens.On("RevokeAll", mock.Anything, int64(10)).Return(nil)
	d.sessions.On("TerminateSession", mock.Anything, int64(10)).Return(nil)
	d.notifier.On("SessionEvent", int64(10), EventReuseDetected).Return()

	_, err := svc.Refresh(context.Background(), raw, "")

	assert.ErrorIs(t, err, ErrSessionTerminated)
	d.notifier.AssertExpectations(t)
}

func TestService_Refresh_DisabledAccountRevokes(t *testing.T) {
	svc, d := newTestService(false)

	raw := "valid-token"
	hash := hashTokenWithPepper(raw, testPepper)
	sessionID := "session-1"
	state := &domain.AuthState{AccountID: 10, CurrentTokenHash: &hash, SessionID: &sessionID}

	account := activeAccount(10, "password123")
	account.Status = domain.StatusDisabled
	d.tokens.On("GetByCurrentHash", mock.Anything, hash).Return(state, nil)
	d.accounts.On("GetByID", mock.Anything, int64(10)).Return(account, nil)
	d.tokens.On("RevokeAll", mock.Anything, int64(10)).Return(nil)
	d.sessions.On("TerminateSession", mock.Anything, int64(10)).Return(nil)

	_, err := svc.Refresh(context.Background(), raw, "")

	assert.ErrorIs(t, err, ErrAccountDisabled)
	d.tokens.AssertExpectations(t)
}

func TestService_Logout_KnownToken(t *testing.T) {
	svc, d := newTestService(false)

	raw := "current-token"
	hash := hashTokenWithPepper(raw, testPepper)
	state := &domain.AuthState{AccountID: 10, CurrentTokenHash: &hash}

	d.tokens.On("GetByCurrentHash", mock.Anything, hash).Return(state, nil)
	d.tokens.On("RevokeAll", mock.Anything, int64(10)).Return(nil)
	d.sessions.On("TerminateSession", mock.Anything, int64(10)).Return(nil)
	d.notifier.On("SessionEvent", int64(10), EventLogout).Return()

	err := svc.Logout(context.Background(), raw)

	assert.NoError(t, err)
	d.tokens.AssertExpectations(t)
	d.sessions.AssertExpectations(t)
}

func TestService_Logout_UnknownTokenStillSucceeds(t *testing.T) {
	svc, d := newTestService(false)

	raw := "garbage"
	hash := hashTokenWithPepper(raw, testPepper)

	d.tokens.On("GetByCurrentHash", mock.Anything, hash).Return(nil, gorm.ErrRecordNotFound)
	d.tokens.On("FindStale", mock.Anything, hash).Return(nil, gorm.ErrRecordNotFound)

	err := svc.Logout(context.Background(), raw)

	assert.NoError(t, err)
	d.tokens.AssertNotCalled(t, "RevokeAll", mock.Anything, mock.Anything)
}

func TestService_CheckSession_Fast(t *testing.T) {
	svc, d := newTestService(false)

	account := activeAccount(10, "password123")
	d.accounts.On("GetByID", mock.Anything, int64(10)).Return(account, nil)

	got, err := svc.CheckSession(context.Background(), 10)

	assert.NoError(t, err)
	assert.Equal(t, account, got)
	d.sessions.AssertNotCalled(t, "TouchAccount", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_CheckSession_StrictRequiresSession(t *testing.T) {
	svc, d := newTestService(true)

	account := activeAccount(10, "password123")
	d.accounts.On("GetByID", mock.Anything, int64(10)).Return(account, nil)
	d.sessions.On("TouchAccount", mock.Anything, int64(10), mock.Anything).Return(repository.ErrNoActiveSession)

	_, err := svc.CheckSession(context.Background(), 10)

	assert.ErrorIs(t, err, ErrSessionMismatch)
}

func TestService_CheckSession_Disabled(t *testing.T) {
	svc, d := newTestService(false)

	account := activeAccount(10, "password123")
	account.Status = domain.StatusDeactivated
	d.accounts.On("GetByID", mock.Anything, int64(10)).Return(account, nil)

	_, err := svc.CheckSession(context.Background(), 10)

	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestService_AdminInvalidate_SuperAdmin(t *testing.T) {
	svc, d := newTestService(false)

	caller := &domain.Account{ID: 1, Role: domain.RoleSuperAdmin, Status: domain.StatusActive}
	target := activeAccount(10, "password123")
	d.accounts.On("GetByID", mock.Anything, int64(1)).Return(caller, nil)
	d.accounts.On("GetByID", mock.Anything, int64(10)).Return(target, nil)
	d.tokens.On("RevokeAll", mock.Anything, int64(10)).Return(nil)
	d.sessions.On("TerminateSession", mock.Anything, int64(10)).Return(nil)
	d.notifier.On("SessionEvent", int64(10), EventAdminInvalidate).Return()

	err := svc.AdminInvalidate(context.Background(), 1, 10)

	assert.NoError(t, err)
	d.tokens.AssertExpectations(t)
	d.notifier.AssertExpectations(t)
}

func TestService_AdminInvalidate_CrossOrgForbidden(t *testing.T) {
	svc, d := newTestService(false)

	orgA, orgB := int64(1), int64(2)
	caller := &domain.Account{ID: 1, Role: domain.RoleAdmin, Status: domain.StatusActive, OrganizationID: &orgA}
	target := activeAccount(10, "password123")
	target.OrganizationID = &orgB
	d.accounts.On("GetByID", mock.Anything, int64(1)).Return(caller, nil)
	d.accounts.On("GetByID", mock.Anything, int64(10)).Return(target, nil)

	err := svc.AdminInvalidate(context.Background(), 1, 10)

	assert.ErrorIs(t, err, ErrForbidden)
	d.tokens.AssertNotCalled(t, "RevokeAll", mock.Anything, mock.Anything)
}
