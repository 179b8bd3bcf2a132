package repository

import (
	"context"
	"time"

	"github.com/mir-akbar/CodeCollab-sub000/internal/domain"
)

// SessionRepository stores sessions and owns the cross-entity transactions
// that must hold the owner invariant. Operations that touch both the
// sessions and participants tables live here so a single database
// transaction can cover them.
type SessionRepository interface {
	// FindByID looks a session up by its opaque id.
	// Returns ErrSessionNotFound if it does not exist.
	FindByID(ctx context.Context, id string) (*domain.Session, error)

	// CreateWithOwner persists a new session together with its owner
	// participant in one transaction. A session must never exist without
	// exactly one owner, so partial failure rolls back both writes.
	CreateWithOwner(ctx context.Context, session *domain.Session, owner *domain.Participant) error

	// Save updates an existing session record.
	Save(ctx context.Context, session *domain.Session) error

	// TransferOwnership atomically demotes the current owner to admin,
	// promotes the target participant to owner, and rewrites the session
	// creator, all in one transaction.
	TransferOwnership(ctx context.Context, sessionID, fromIdentity, toIdentity string) error

	// Archive marks the session archived and deletes all of its
	// participant records in one transaction. The session row itself is
	// kept for audit.
	Archive(ctx context.Context, sessionID string) error

	// ListByParticipant returns the sessions in which identity holds a
	// participant record, most recently active first.
	ListByParticipant(ctx context.Context, identity string) ([]domain.Session, error)

	// TouchActivity bumps the session's last-activity timestamp.
	TouchActivity(ctx context.Context, sessionID string, at time.Time) error
}
