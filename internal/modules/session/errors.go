package session

import "errors"

var (
	// ErrInvalidCredentials covers unknown identifier and wrong secret
	// alike; callers must not distinguish the two in user-facing output.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountDisabled is the status gate: the account exists but is
	// disabled or deactivated.
	ErrAccountDisabled = errors.New("account is disabled")

	// ErrActiveSessionConflict is returned by Login when the account
	// already holds a session. Recoverable: the caller may re-invoke as
	// ForceLogin.
	ErrActiveSessionConflict = errors.New("account already has an active session")

	// ErrInvalidToken means the refresh token was never part of any
	// known family.
	ErrInvalidToken = errors.New("invalid refresh token")

	// ErrSessionTerminated means the token family was revoked, either
	// here defensively (stale reuse) or earlier by logout or an admin.
	ErrSessionTerminated = errors.New("session terminated")

	// ErrSessionMismatch means the session was superseded elsewhere;
	// the caller must log in again.
	ErrSessionMismatch = errors.New("session superseded")

	ErrForbidden = errors.New("forbidden")
)
