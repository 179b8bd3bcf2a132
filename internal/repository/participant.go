package repository

import (
	"context"

	"github.com/mir-akbar/CodeCollab-sub000/internal/domain"
)

// ParticipantRepository stores session membership records. Create and
// Delete maintain the denormalized participant count on the session row
// inside the same transaction, so the count can never drift from the
// records it summarizes.
type ParticipantRepository interface {
	// Find returns the participant record for (sessionID, identity).
	// Returns ErrParticipantNotFound if no record exists.
	Find(ctx context.Context, sessionID, identity string) (*domain.Participant, error)

	// FindOwner returns the participant currently holding the owner role.
	FindOwner(ctx context.Context, sessionID string) (*domain.Participant, error)

	// ListBySession returns every participant record of the session.
	ListBySession(ctx context.Context, sessionID string) ([]domain.Participant, error)

	// Create inserts a new participant and increments the session's
	// participant count in one transaction. Returns ErrDuplicateEntry if a
	// record for (sessionID, identity) already exists.
	Create(ctx context.Context, participant *domain.Participant) error

	// Update rewrites an existing participant record (role, status,
	// joined-at). It never changes the participant count.
	Update(ctx context.Context, participant *domain.Participant) error

	// Delete removes the participant record and decrements the session's
	// participant count in one transaction.
	Delete(ctx context.Context, sessionID, identity string) error

	// CountBySession counts all participant records of the session,
	// invited and active alike.
	CountBySession(ctx context.Context, sessionID string) (int64, error)
}
