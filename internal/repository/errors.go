package repository

import "errors"

// Errors shared by every repository implementation. Services match on
// these with errors.Is and translate them into their own taxonomy.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry indicates a write violated a uniqueness constraint.
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
)

// Aliases for call sites that want to name the missing resource.
var (
	ErrSessionNotFound     = ErrNotFound
	ErrParticipantNotFound = ErrNotFound
	ErrFileNotFound        = ErrNotFound
)
