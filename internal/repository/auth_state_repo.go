package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"portal/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultHistoryLimit = 5

// AuthStateRepository owns the per-account auth state record: the current
// refresh token, the bounded history of superseded tokens, and the single
// active session descriptor. Every mutation is either one guarded UPDATE
// or one short locking transaction, so concurrent callers serialize per
// account through the database rather than through in-process locks.
type AuthStateRepository struct {
	db           *gorm.DB
	historyLimit int
}

func NewAuthStateRepository(db *gorm.DB, historyLimit int) *AuthStateRepository {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &AuthStateRepository{db: db, historyLimit: historyLimit}
}

func (r *AuthStateRepository) GetByCurrentHash(ctx context.Context, hash string) (*domain.AuthState, error) {
	var s domain.AuthState
	tx := r.db.WithContext(ctx).Where("current_token_hash = ?", hash).First(&s)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &s, nil
}

// FindStale looks the hash up in token histories. A hit means the token
// once belonged to a family and has been superseded — the reuse signal.
func (r *AuthStateRepository) FindStale(ctx context.Context, hash string) (*domain.AuthState, error) {
	var candidates []domain.AuthState
	tx := r.db.WithContext(ctx).Where("history LIKE ?", "%"+hash+"%").Find(&candidates)
	if tx.Error != nil {
		return nil, tx.Error
	}
	for i := range candidates {
		if candidates[i].InHistory(hash) {
			return &candidates[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// locked loads the account's state row under FOR UPDATE, creating it if
// absent, and hands it to fn for mutation. fn's changes are persisted
// with Save inside the same transaction.
//
// Two concurrent first calls for the same account both see no row and
// both Create; the loser hits the primary key (or SQLITE_BUSY). One
// retry resolves it: the row exists now, so the locking read takes
// over and fn decides the outcome.
func (r *AuthStateRepository) locked(ctx context.Context, accountID int64, fn func(s *domain.AuthState) error) error {
	err := r.lockedOnce(ctx, accountID, fn)
	if isCreateRace(err) {
		err = r.lockedOnce(ctx, accountID, fn)
	}
	return err
}

func (r *AuthStateRepository) lockedOnce(ctx context.Context, accountID int64, fn func(s *domain.AuthState) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s domain.AuthState
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id = ?", accountID).
			First(&s).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s = domain.AuthState{AccountID: accountID}
			if err := tx.Omit(clause.Associations).Create(&s).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := fn(&s); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Save(&s).Error
	})
}

func isCreateRace(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// InstallFamily starts a new token family. A still-valid current token
// (a forced takeover, or a login over a swept session) is retired into
// the history, so presenting it later registers as reuse rather than as
// an unknown token. Session fields are left untouched.
func (r *AuthStateRepository) InstallFamily(ctx context.Context, accountID int64, tokenHash string, issuedAt time.Time) error {
	return r.locked(ctx, accountID, func(s *domain.AuthState) error {
		if s.CurrentTokenHash != nil {
			entry := domain.RotatedToken{
				TokenHash: *s.CurrentTokenHash,
				RotatedAt: issuedAt,
			}
			s.History = append([]domain.RotatedToken{entry}, s.History...)
			if len(s.History) > r.historyLimit {
				s.History = s.History[:r.historyLimit]
			}
		}
		s.CurrentTokenHash = &tokenHash
		s.TokenIssuedAt = &issuedAt
		return nil
	})
}

// Rotate is a compare-and-swap: it succeeds only while oldHash is still
// the current token. Exactly one of two concurrent rotations with the
// same old token wins; the loser gets ErrTokenStale. The superseded
// token is pushed onto the history front, evicting the oldest entry
// beyond the limit.
func (r *AuthStateRepository) Rotate(ctx context.Context, accountID int64, oldHash, newHash, originHint string) (*domain.AuthState, error) {
	now := time.Now().UTC()
	var out *domain.AuthState
	err := r.locked(ctx, accountID, func(s *domain.AuthState) error {
		if s.CurrentTokenHash == nil || *s.CurrentTokenHash != oldHash {
			return ErrTokenStale
		}

		entry := domain.RotatedToken{
			TokenHash:  oldHash,
			RotatedAt:  now,
			OriginHint: originHint,
		}
		s.History = append([]domain.RotatedToken{entry}, s.History...)
		if len(s.History) > r.historyLimit {
			s.History = s.History[:r.historyLimit]
		}

		s.CurrentTokenHash = &newHash
		s.TokenIssuedAt = &now

		copied := *s
		out = &copied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RevokeAll clears the current token and the history. Idempotent: a
// second call on an already-clean record is a no-op.
func (r *AuthStateRepository) RevokeAll(ctx context.Context, accountID int64) error {
	return r.db.WithContext(ctx).Model(&domain.AuthState{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{
			"current_token_hash": nil,
			"token_issued_at":    nil,
			"history":            nil,
		}).Error
}

// TryCreateSession records desc only if the account has no session.
// Otherwise the existing descriptor is returned for the caller to decide.
func (r *AuthStateRepository) TryCreateSession(ctx context.Context, accountID int64, desc domain.SessionDescriptor) (bool, *domain.SessionDescriptor, error) {
	var existing *domain.SessionDescriptor
	created := false
	err := r.locked(ctx, accountID, func(s *domain.AuthState) error {
		if s.HasSession() {
			existing = s.Session()
			return nil
		}
		setSession(s, desc)
		created = true
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return created, existing, nil
}

// ForceReplaceSession unconditionally installs desc and returns whatever
// descriptor was there. The previous session's id becomes orphaned, so
// its subsequent touches fail with ErrSessionMismatch.
func (r *AuthStateRepository) ForceReplaceSession(ctx context.Context, accountID int64, desc domain.SessionDescriptor) (*domain.SessionDescriptor, error) {
	var previous *domain.SessionDescriptor
	err := r.locked(ctx, accountID, func(s *domain.AuthState) error {
		previous = s.Session()
		setSession(s, desc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// TouchSession bumps last_activity, guarded by the session id. A zero
// row count means the session was superseded or terminated elsewhere.
func (r *AuthStateRepository) TouchSession(ctx context.Context, accountID int64, sessionID string, at time.Time) error {
	tx := r.db.WithContext(ctx).Model(&domain.AuthState{}).
		Where("account_id = ? AND session_id = ?", accountID, sessionID).
		Update("last_activity", at.UTC())
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrSessionMismatch
	}
	return nil
}

// TouchAccount bumps last_activity of whatever session the account holds.
// Used by the strict liveness check, which has no session id at hand.
func (r *AuthStateRepository) TouchAccount(ctx context.Context, accountID int64, at time.Time) error {
	tx := r.db.WithContext(ctx).Model(&domain.AuthState{}).
		Where("account_id = ? AND session_id IS NOT NULL", accountID).
		Update("last_activity", at.UTC())
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNoActiveSession
	}
	return nil
}

// TerminateSession removes the session descriptor. Idempotent.
func (r *AuthStateRepository) TerminateSession(ctx context.Context, accountID int64) error {
	return r.db.WithContext(ctx).Model(&domain.AuthState{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{
			"session_id":    nil,
			"login_time":    nil,
			"last_activity": nil,
			"origin_hint":   nil,
		}).Error
}

// ClearIdleSessions terminates sessions whose last activity predates the
// cutoff. Used by the periodic sweep command.
func (r *AuthStateRepository) ClearIdleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&domain.AuthState{}).
		Where("session_id IS NOT NULL AND last_activity < ?", cutoff.UTC()).
		Updates(map[string]any{
			"session_id":    nil,
			"login_time":    nil,
			"last_activity": nil,
			"origin_hint":   nil,
		})
	return tx.RowsAffected, tx.Error
}

// DeleteEmpty prunes records that hold neither a token family nor a
// session.
func (r *AuthStateRepository) DeleteEmpty(ctx context.Context) (int64, error) {
	tx := r.db.WithContext(ctx).
		Where("current_token_hash IS NULL AND session_id IS NULL").
		Delete(&domain.AuthState{})
	return tx.RowsAffected, tx.Error
}

func setSession(s *domain.AuthState, desc domain.SessionDescriptor) {
	s.SessionID = &desc.SessionID
	loginTime := desc.LoginTime.UTC()
	lastActivity := desc.LastActivity.UTC()
	s.LoginTime = &loginTime
	s.LastActivity = &lastActivity
	if desc.OriginHint != "" {
		hint := desc.OriginHint
		s.OriginHint = &hint
	} else {
		s.OriginHint = nil
	}
}
