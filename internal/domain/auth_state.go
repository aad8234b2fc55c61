package domain

import "time"

// RotatedToken is one superseded refresh token kept for reuse detection.
// Entries are ordered newest first.
type RotatedToken struct {
	TokenHash  string    `json:"token_hash"`
	RotatedAt  time.Time `json:"rotated_at"`
	OriginHint string    `json:"origin_hint,omitempty"`
}

// SessionDescriptor is the single active session of an account.
type SessionDescriptor struct {
	SessionID    string    `json:"session_id"`
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
	OriginHint   string    `json:"origin_hint,omitempty"`
}

// AuthState is the one persisted record per account holding the current
// refresh token family and the active session. At most one current token
// and at most one session exist per account; everything in History is
// permanently invalid.
type AuthState struct {
	AccountID int64   `json:"account_id" gorm:"primaryKey"`
	Account   Account `json:"-" gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE"`

	CurrentTokenHash *string    `json:"-" gorm:"size:64;uniqueIndex"`
	TokenIssuedAt    *time.Time `json:"token_issued_at,omitempty"`

	History []RotatedToken `json:"-" gorm:"serializer:json;type:text"`

	SessionID    *string    `json:"session_id,omitempty" gorm:"size:36;index"`
	LoginTime    *time.Time `json:"login_time,omitempty"`
	LastActivity *time.Time `json:"last_activity,omitempty" gorm:"index"`
	OriginHint   *string    `json:"origin_hint,omitempty" gorm:"size:255"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (AuthState) TableName() string { return "auth_states" }

func (s *AuthState) HasSession() bool {
	return s.SessionID != nil && *s.SessionID != ""
}

func (s *AuthState) Session() *SessionDescriptor {
	if !s.HasSession() {
		return nil
	}
	d := &SessionDescriptor{SessionID: *s.SessionID}
	if s.LoginTime != nil {
		d.LoginTime = *s.LoginTime
	}
	if s.LastActivity != nil {
		d.LastActivity = *s.LastActivity
	}
	if s.OriginHint != nil {
		d.OriginHint = *s.OriginHint
	}
	return d
}

// InHistory reports whether hash belongs to a superseded token of this family.
func (s *AuthState) InHistory(hash string) bool {
	for _, h := range s.History {
		if h.TokenHash == hash {
			return true
		}
	}
	return false
}
