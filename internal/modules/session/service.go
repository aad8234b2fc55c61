package session

import (
	"context"
	"errors"
	"time"

	"portal/internal/domain"
	"portal/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service orchestrates credential verification, token issue/rotation and
// the single-session registrar into atomic, retry-safe operations. It is
// constructed once at startup and injected into handlers; it keeps no
// per-account state in process, so any number of instances may serve the
// same store.
type Service struct {
	verifier *Verifier
	accounts AccountReader
	tokens   TokenStore
	sessions Registrar
	jwt      jwtService
	notifier EventNotifier

	refreshPepper string
	strictCheck   bool
}

type AuthResult struct {
	Account                   *domain.Account
	AccessToken               string
	RefreshToken              string
	PreviousSessionTerminated bool
}

type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

func NewService(
	accounts AccountReader,
	tokens TokenStore,
	sessions Registrar,
	jwt jwtService,
	notifier EventNotifier,
	refreshPepper string,
	strictCheck bool,
) *Service {
	return &Service{
		verifier:      NewVerifier(accounts),
		accounts:      accounts,
		tokens:        tokens,
		sessions:      sessions,
		jwt:           jwt,
		notifier:      notifier,
		refreshPepper: refreshPepper,
		strictCheck:   strictCheck,
	}
}

// Login authenticates and starts a session. If the account already holds
// one, it fails with ErrActiveSessionConflict before issuing any tokens;
// the caller decides whether to proceed as ForceLogin.
func (s *Service) Login(ctx context.Context, email, password, originHint string) (*AuthResult, error) {
	account, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		return nil, err
	}

	desc := newDescriptor(originHint)
	created, _, err := s.sessions.TryCreateSession(ctx, account.ID, desc)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, ErrActiveSessionConflict
	}

	result, err := s.issuePair(ctx, account)
	if err != nil {
		// Release the session so a failed issue does not leave the
		// account wedged behind a token-less session.
		_ = s.sessions.TerminateSession(ctx, account.ID)
		return nil, err
	}

	s.notify(account.ID, EventLogin)
	return result, nil
}

// ForceLogin authenticates and takes the session over. The previous
// session's id is orphaned and its token family discarded, so both paths
// back in are severed.
func (s *Service) ForceLogin(ctx context.Context, email, password, originHint string) (*AuthResult, error) {
	account, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		return nil, err
	}

	desc := newDescriptor(originHint)
	if _, err := s.sessions.ForceReplaceSession(ctx, account.ID, desc); err != nil {
		return nil, err
	}

	result, err := s.issuePair(ctx, account)
	if err != nil {
		_ = s.sessions.TerminateSession(ctx, account.ID)
		return nil, err
	}
	result.PreviousSessionTerminated = true

	s.notify(account.ID, EventForceLogin)
	return result, nil
}

// Refresh exchanges a refresh token for a new access/refresh pair,
// rotating the family. Presenting a superseded token, or losing the
// rotation race, revokes the whole family and terminates the session:
// after a reuse signal nobody keeps a valid path in.
func (s *Service) Refresh(ctx context.Context, refreshToken, originHint string) (*RefreshResult, error) {
	hash := hashTokenWithPepper(refreshToken, s.refreshPepper)

	state, err := s.tokens.GetByCurrentHash(ctx, hash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, s.handleUnknownToken(ctx, hash)
		}
		return nil, err
	}
	accountID := state.AccountID

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive() {
		s.revoke(ctx, accountID)
		return nil, ErrAccountDisabled
	}

	newRaw, newHash, err := generateOpaqueRefreshToken(s.refreshPepper)
	if err != nil {
		return nil, err
	}

	rotated, err := s.tokens.Rotate(ctx, accountID, hash, newHash, originHint)
	if err != nil {
		if errors.Is(err, repository.ErrTokenStale) {
			// Lost a race against a concurrent refresh with the same
			// token: treat as reuse and kill the family.
			s.revoke(ctx, accountID)
			s.notify(accountID, EventReuseDetected)
			return nil, ErrSessionTerminated
		}
		return nil, err
	}

	// Bind the refresh to the session that issued the family. If a
	// takeover or an admin terminated it in between, fail closed.
	if !rotated.HasSession() || state.SessionID == nil {
		return nil, ErrSessionMismatch
	}
	if err := s.sessions.TouchSession(ctx, accountID, *state.SessionID, time.Now()); err != nil {
		if errors.Is(err, repository.ErrSessionMismatch) {
			return nil, ErrSessionMismatch
		}
		return nil, err
	}

	accessToken, err := s.jwt.GenerateToken(account.ID, string(account.Role))
	if err != nil {
		return nil, err
	}

	return &RefreshResult{AccessToken: accessToken, RefreshToken: newRaw}, nil
}

// Logout revokes the token family and terminates the session. It always
// succeeds, even for tokens that were never valid, so its outcome leaks
// no state.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	hash := hashTokenWithPepper(refreshToken, s.refreshPepper)

	state, err := s.tokens.GetByCurrentHash(ctx, hash)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state, err = s.tokens.FindStale(ctx, hash)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	s.revoke(ctx, state.AccountID)
	s.notify(state.AccountID, EventLogout)
	return nil
}

// CheckSession resolves already-decoded access token claims to a live
// account. The fast path is stateless; in strict mode the account must
// also hold a session, whose last activity is bumped.
func (s *Service) CheckSession(ctx context.Context, accountID int64) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !account.IsActive() {
		return nil, ErrAccountDisabled
	}

	if s.strictCheck {
		if err := s.sessions.TouchAccount(ctx, accountID, time.Now()); err != nil {
			if errors.Is(err, repository.ErrNoActiveSession) {
				return nil, ErrSessionMismatch
			}
			return nil, err
		}
	}

	return account, nil
}

// AdminInvalidate revokes an account's credentials on behalf of an
// admin. Organization scoping is a pure policy decision; the operation
// itself is idempotent. The caller is re-read from the store so the
// decision uses current role and organization, not token claims.
func (s *Service) AdminInvalidate(ctx context.Context, callerID, targetID int64) error {
	caller, err := s.accounts.GetByID(ctx, callerID)
	if err != nil {
		return err
	}
	target, err := s.accounts.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if !CanInvalidateSession(caller, target) {
		return ErrForbidden
	}

	s.revoke(ctx, targetID)
	s.notify(targetID, EventAdminInvalidate)
	return nil
}

// InvalidateAccount is the internal hook other modules call when an
// account's credentials must stop working (password change, status
// change). Idempotent.
func (s *Service) InvalidateAccount(ctx context.Context, accountID int64) error {
	s.revoke(ctx, accountID)
	return nil
}

func (s *Service) issuePair(ctx context.Context, account *domain.Account) (*AuthResult, error) {
	raw, hash, err := generateOpaqueRefreshToken(s.refreshPepper)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.InstallFamily(ctx, account.ID, hash, time.Now().UTC()); err != nil {
		return nil, err
	}

	accessToken, err := s.jwt.GenerateToken(account.ID, string(account.Role))
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Account:      account,
		AccessToken:  accessToken,
		RefreshToken: raw,
	}, nil
}

// handleUnknownToken distinguishes stale reuse (compromise signal) from
// a token that never existed.
func (s *Service) handleUnknownToken(ctx context.Context, hash string) error {
	stale, err := s.tokens.FindStale(ctx, hash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	s.revoke(ctx, stale.AccountID)
	s.notify(stale.AccountID, EventReuseDetected)
	return ErrSessionTerminated
}

// revoke clears the token family and the session. Both operations are
// idempotent so retries after a timeout cannot corrupt state.
func (s *Service) revoke(ctx context.Context, accountID int64) {
	_ = s.tokens.RevokeAll(ctx, accountID)
	_ = s.sessions.TerminateSession(ctx, accountID)
}

func (s *Service) notify(accountID int64, event string) {
	if s.notifier != nil {
		s.notifier.SessionEvent(accountID, event)
	}
}

func newDescriptor(originHint string) domain.SessionDescriptor {
	now := time.Now().UTC()
	return domain.SessionDescriptor{
		SessionID:    uuid.NewString(),
		LoginTime:    now,
		LastActivity: now,
		OriginHint:   originHint,
	}
}
