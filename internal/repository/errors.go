package repository

import "errors"

var (
	// ErrTokenStale is the compare-and-swap failure of Rotate: the
	// presented token is no longer the current one.
	ErrTokenStale = errors.New("refresh token is stale")

	// ErrNoActiveSession means a session-scoped update found no session.
	ErrNoActiveSession = errors.New("no active session")

	// ErrSessionMismatch means the stored session id differs from the
	// one the caller holds (the session was superseded).
	ErrSessionMismatch = errors.New("session id mismatch")
)
