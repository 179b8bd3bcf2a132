package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// StateRepository is a testify mock of repository.StateRepository.
type StateRepository struct {
	mock.Mock
}

func (m *StateRepository) MarkActivity(ctx context.Context, sessionID string, at time.Time) error {
	args := m.Called(ctx, sessionID, at)
	return args.Error(0)
}

func (m *StateRepository) CollectActivity(ctx context.Context) (map[string]time.Time, error) {
	args := m.Called(ctx)
	var marks map[string]time.Time
	if args.Get(0) != nil {
		marks = args.Get(0).(map[string]time.Time)
	}
	return marks, args.Error(1)
}

func (m *StateRepository) SetRoomPresence(ctx context.Context, roomKey string, count int, ttl time.Duration) error {
	args := m.Called(ctx, roomKey, count, ttl)
	return args.Error(0)
}

func (m *StateRepository) SessionPresence(ctx context.Context, sessionID string) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *StateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}
