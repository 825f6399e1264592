package agent

import "errors"

// Sentinel errors returned by session and manager operations.
var (
	ErrSessionClosed    = errors.New("agent: session closed")
	ErrAlreadyReceiving = errors.New("agent: already receiving")
	ErrNoPendingMessage = errors.New("agent: no pending message")
	ErrSessionNotFound  = errors.New("agent: session not found")
	ErrNoProvider       = errors.New("agent: no provider configured")
)
