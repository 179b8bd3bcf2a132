package repository

import (
	"context"
	"time"
)

// StateRepository holds the volatile realtime state that does not belong
// in the relational store, typically backed by Redis: per-session activity
// marks, live room presence counts, and API rate-limit counters.
type StateRepository interface {
	// MarkActivity records that the session saw traffic at the given time
	// and flags it for the next activity flush.
	MarkActivity(ctx context.Context, sessionID string, at time.Time) error

	// CollectActivity returns the pending activity marks and clears them,
	// so each flush cycle sees a session at most once.
	CollectActivity(ctx context.Context) (map[string]time.Time, error)

	// SetRoomPresence publishes the live member count of a room. A zero
	// count deletes the key. The key carries a TTL so counts from a dead
	// node eventually disappear on their own.
	SetRoomPresence(ctx context.Context, roomKey string, count int, ttl time.Duration) error

	// SessionPresence sums the live member counts across all rooms of the
	// session.
	SessionPresence(ctx context.Context, sessionID string) (int, error)

	// CheckRateLimit increments the counter for key within a fixed window
	// and reports whether the limit is now exceeded.
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
