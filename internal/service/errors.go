package service

import "errors"

// Service-level errors. The HTTP boundary maps these onto status codes in
// one place (internal/handler/http); nothing else should inspect error
// strings.
var (
	// Validation failures (malformed input, unknown roles, self-targeting).
	ErrValidation    = errors.New("invalid input")
	ErrUnknownRole   = errors.New("unknown role")
	ErrSelfOperation = errors.New("operation cannot target the caller itself")

	// Permission failures.
	ErrPermissionDenied = errors.New("permission denied")

	// Missing resources.
	ErrSessionNotFound     = errors.New("session not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrFileNotFound        = errors.New("file not found")

	// Conflicts.
	ErrAlreadyParticipant = errors.New("identity is already an active participant")
	ErrSessionExists      = errors.New("session id already exists")
	ErrSessionFull        = errors.New("session participant limit reached")

	// Illegal state transitions.
	ErrSessionArchived   = errors.New("session is archived")
	ErrOwnerImmutable    = errors.New("owner cannot be removed or demoted directly; transfer ownership first")
	ErrInvalidTransition = errors.New("illegal participant state transition")

	ErrInternalServer = errors.New("internal server error")
)
