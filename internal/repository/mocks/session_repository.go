package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mir-akbar/CodeCollab-sub000/internal/domain"
)

// SessionRepository is a testify mock of repository.SessionRepository.
type SessionRepository struct {
	mock.Mock
}

func (m *SessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	args := m.Called(ctx, id)
	var session *domain.Session
	if args.Get(0) != nil {
		session = args.Get(0).(*domain.Session)
	}
	return session, args.Error(1)
}

func (m *SessionRepository) CreateWithOwner(ctx context.Context, session *domain.Session, owner *domain.Participant) error {
	args := m.Called(ctx, session, owner)
	return args.Error(0)
}

func (m *SessionRepository) Save(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *SessionRepository) TransferOwnership(ctx context.Context, sessionID, fromIdentity, toIdentity string) error {
	args := m.Called(ctx, sessionID, fromIdentity, toIdentity)
	return args.Error(0)
}

func (m *SessionRepository) Archive(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *SessionRepository) ListByParticipant(ctx context.Context, identity string) ([]domain.Session, error) {
	args := m.Called(ctx, identity)
	var sessions []domain.Session
	if args.Get(0) != nil {
		sessions = args.Get(0).([]domain.Session)
	}
	return sessions, args.Error(1)
}

func (m *SessionRepository) TouchActivity(ctx context.Context, sessionID string, at time.Time) error {
	args := m.Called(ctx, sessionID, at)
	return args.Error(0)
}
