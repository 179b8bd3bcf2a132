package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mir-akbar/CodeCollab-sub000/internal/domain"
)

// ParticipantRepository is a testify mock of repository.ParticipantRepository.
type ParticipantRepository struct {
	mock.Mock
}

func (m *ParticipantRepository) Find(ctx context.Context, sessionID, identity string) (*domain.Participant, error) {
	args := m.Called(ctx, sessionID, identity)
	var participant *domain.Participant
	if args.Get(0) != nil {
		participant = args.Get(0).(*domain.Participant)
	}
	return participant, args.Error(1)
}

func (m *ParticipantRepository) FindOwner(ctx context.Context, sessionID string) (*domain.Participant, error) {
	args := m.Called(ctx, sessionID)
	var participant *domain.Participant
	if args.Get(0) != nil {
		participant = args.Get(0).(*domain.Participant)
	}
	return participant, args.Error(1)
}

func (m *ParticipantRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	args := m.Called(ctx, sessionID)
	var participants []domain.Participant
	if args.Get(0) != nil {
		participants = args.Get(0).([]domain.Participant)
	}
	return participants, args.Error(1)
}

func (m *ParticipantRepository) Create(ctx context.Context, participant *domain.Participant) error {
	args := m.Called(ctx, participant)
	return args.Error(0)
}

func (m *ParticipantRepository) Update(ctx context.Context, participant *domain.Participant) error {
	args := m.Called(ctx, participant)
	return args.Error(0)
}

func (m *ParticipantRepository) Delete(ctx context.Context, sessionID, identity string) error {
	args := m.Called(ctx, sessionID, identity)
	return args.Error(0)
}

func (m *ParticipantRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(int64), args.Error(1)
}
