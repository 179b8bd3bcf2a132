package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mir-akbar/CodeCollab-sub000/internal/domain"
)

// ContentStore is a testify mock of repository.ContentStore.
type ContentStore struct {
	mock.Mock
}

func (m *ContentStore) Get(ctx context.Context, sessionID, path string) (*domain.FileSnapshot, error) {
	args := m.Called(ctx, sessionID, path)
	var snapshot *domain.FileSnapshot
	if args.Get(0) != nil {
		snapshot = args.Get(0).(*domain.FileSnapshot)
	}
	return snapshot, args.Error(1)
}

func (m *ContentStore) Put(ctx context.Context, snapshot *domain.FileSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func (m *ContentStore) List(ctx context.Context, sessionID string) ([]domain.FileSnapshot, error) {
	args := m.Called(ctx, sessionID)
	var snapshots []domain.FileSnapshot
	if args.Get(0) != nil {
		snapshots = args.Get(0).([]domain.FileSnapshot)
	}
	return snapshots, args.Error(1)
}

func (m *ContentStore) Delete(ctx context.Context, sessionID, path string) error {
	args := m.Called(ctx, sessionID, path)
	return args.Error(0)
}
