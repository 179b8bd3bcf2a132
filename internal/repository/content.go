package repository

import (
	"context"

	"github.com/mir-akbar/CodeCollab-sub000/internal/domain"
)

// ContentStore is the abstract snapshot store the sync bridge writes to.
// The core only needs get/put/list/delete keyed by (sessionID, path);
// where the bytes actually live is an infrastructure decision.
type ContentStore interface {
	// Get returns the latest snapshot for (sessionID, path).
	// Returns ErrFileNotFound if the file has never been persisted.
	Get(ctx context.Context, sessionID, path string) (*domain.FileSnapshot, error)

	// Put upserts the snapshot for (snapshot.SessionID, snapshot.Path),
	// refreshing size and modified metadata.
	Put(ctx context.Context, snapshot *domain.FileSnapshot) error

	// List returns snapshot metadata (no content bytes) for every file of
	// the session, ordered by path.
	List(ctx context.Context, sessionID string) ([]domain.FileSnapshot, error)

	// Delete removes the snapshot for (sessionID, path).
	Delete(ctx context.Context, sessionID, path string) error
}
