package session

import (
	"context"
	"time"

	"portal/internal/domain"
)

// AccountReader — only the identity lookups the session manager needs.
// The manager never writes to accounts.
type AccountReader interface {
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
}

// TokenStore — per-account refresh token family with atomic rotation.
type TokenStore interface {
	GetByCurrentHash(ctx context.Context, hash string) (*domain.AuthState, error)
	FindStale(ctx context.Context, hash string) (*domain.AuthState, error)
	InstallFamily(ctx context.Context, accountID int64, tokenHash string, issuedAt time.Time) error
	Rotate(ctx context.Context, accountID int64, oldHash, newHash, originHint string) (*domain.AuthState, error)
	RevokeAll(ctx context.Context, accountID int64) error
}

// Registrar — at most one session descriptor per account.
type Registrar interface {
	TryCreateSession(ctx context.Context, accountID int64, desc domain.SessionDescriptor) (bool, *domain.SessionDescriptor, error)
	ForceReplaceSession(ctx context.Context, accountID int64, desc domain.SessionDescriptor) (*domain.SessionDescriptor, error)
	TouchSession(ctx context.Context, accountID int64, sessionID string, at time.Time) error
	TouchAccount(ctx context.Context, accountID int64, at time.Time) error
	TerminateSession(ctx context.Context, accountID int64) error
}

type jwtService interface {
	GenerateToken(accountID int64, role string) (string, error)
}

// EventNotifier receives session lifecycle events. Implementations must
// not block; the orchestrator calls it inline on the request path.
type EventNotifier interface {
	SessionEvent(accountID int64, event string)
}

const (
	EventLogin           = "login"
	EventForceLogin      = "force_login"
	EventLogout          = "logout"
	EventAdminInvalidate = "admin_invalidate"
	EventReuseDetected   = "reuse_detected"
)
