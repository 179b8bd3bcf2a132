package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mir-akbar/CodeCollab-sub000/internal/domain"
	"github.com/mir-akbar/CodeCollab-sub000/internal/repository"
)

// GormParticipantRepository is the GORM implementation of
// ParticipantRepository.
type GormParticipantRepository struct {
	db *gorm.DB
}

// NewGormParticipantRepository creates a GormParticipantRepository.
func NewGormParticipantRepository(db *gorm.DB) *GormParticipantRepository {
	if db == nil {
		panic("database connection cannot be nil for GormParticipantRepository")
	}
	return &GormParticipantRepository{db: db}
}

func (r *GormParticipantRepository) Find(ctx context.Context, sessionID, identity string) (*domain.Participant, error) {
	var participant domain.Participant
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND identity = ?", sessionID, identity).
		First(&participant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("gorm: find participant (%q, %q): %w", sessionID, identity, err)
	}
	return &participant, nil
}

func (r *GormParticipantRepository) FindOwner(ctx context.Context, sessionID string) (*domain.Participant, error) {
	var participant domain.Participant
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND role = ?", sessionID, domain.RoleOwner).
		First(&participant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("gorm: find owner of session %q: %w", sessionID, err)
	}
	return &participant, nil
}

func (r *GormParticipantRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	var participants []domain.Participant
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&participants).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list participants of session %q: %w", sessionID, err)
	}
	return participants, nil
}

// Create inserts the participant and bumps the session's participant count
// in the same transaction.
func (r *GormParticipantRepository) Create(ctx context.Context, participant *domain.Participant) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(participant).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Session{}).
			Where("id = ?", participant.SessionID).
			Update("participant_count", gorm.Expr("participant_count + 1")).Error
	})
	if err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create participant (%q, %q): %w", participant.SessionID, participant.Identity, err)
	}
	return nil
}

func (r *GormParticipantRepository) Update(ctx context.Context, participant *domain.Participant) error {
	if err := r.db.WithContext(ctx).Save(participant).Error; err != nil {
		return fmt.Errorf("gorm: update participant (%q, %q): %w", participant.SessionID, participant.Identity, err)
	}
	return nil
}

// Delete removes the participant record and decrements the session's
// participant count in the same transaction.
func (r *GormParticipantRepository) Delete(ctx context.Context, sessionID, identity string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("session_id = ? AND identity = ?", sessionID, identity).
			Delete(&domain.Participant{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrParticipantNotFound
		}
		return tx.Model(&domain.Session{}).
			Where("id = ? AND participant_count > 0", sessionID).
			Update("participant_count", gorm.Expr("participant_count - 1")).Error
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("gorm: delete participant (%q, %q): %w", sessionID, identity, err)
	}
	return nil
}

func (r *GormParticipantRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Participant{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count participants of session %q: %w", sessionID, err)
	}
	return count, nil
}
