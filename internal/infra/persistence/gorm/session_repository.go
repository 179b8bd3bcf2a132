package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/mir-akbar/CodeCollab-sub000/internal/domain"
	"github.com/mir-akbar/CodeCollab-sub000/internal/repository"
)

// GormSessionRepository is the GORM implementation of SessionRepository.
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a GormSessionRepository.
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	if db == nil {
		panic("database connection cannot be nil for GormSessionRepository")
	}
	return &GormSessionRepository{db: db}
}

func (r *GormSessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	var session domain.Session
	err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}
		return nil, fmt.Errorf("gorm: find session %q: %w", id, err)
	}
	return &session, nil
}

// CreateWithOwner inserts the session and its owner participant in one
// transaction so a session can never be observed without its owner.
func (r *GormSessionRepository) CreateWithOwner(ctx context.Context, session *domain.Session, owner *domain.Participant) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session.ParticipantCount = 1
		if err := tx.Create(session).Error; err != nil {
			return err
		}
		return tx.Create(owner).Error
	})
	if err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create session %q with owner: %w", session.ID, err)
	}
	return nil
}

func (r *GormSessionRepository) Save(ctx context.Context, session *domain.Session) error {
	if err := r.db.WithContext(ctx).Save(session).Error; err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save session %q: %w", session.ID, err)
	}
	return nil
}

// TransferOwnership swaps the owner role between two participants and
// rewrites the session creator in a single transaction. Both updates must
// hit exactly one row each or the transaction rolls back, which keeps the
// at-most-one-owner invariant under concurrent transfers.
func (r *GormSessionRepository) TransferOwnership(ctx context.Context, sessionID, fromIdentity, toIdentity string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		demote := tx.Model(&domain.Participant{}).
			Where("session_id = ? AND identity = ? AND role = ?", sessionID, fromIdentity, domain.RoleOwner).
			Update("role", domain.RoleAdmin)
		if demote.Error != nil {
			return demote.Error
		}
		if demote.RowsAffected != 1 {
			return repository.ErrParticipantNotFound
		}

		promote := tx.Model(&domain.Participant{}).
			Where("session_id = ? AND identity = ?", sessionID, toIdentity).
			Update("role", domain.RoleOwner)
		if promote.Error != nil {
			return promote.Error
		}
		if promote.RowsAffected != 1 {
			return repository.ErrParticipantNotFound
		}

		return tx.Model(&domain.Session{}).
			Where("id = ?", sessionID).
			Update("creator", toIdentity).Error
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("gorm: transfer ownership of session %q: %w", sessionID, err)
	}
	return nil
}

// Archive marks the session archived and deletes its participant records.
// The session row stays behind for audit.
func (r *GormSessionRepository) Archive(ctx context.Context, sessionID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Session{}).
			Where("id = ? AND status = ?", sessionID, domain.SessionActive).
			Updates(map[string]interface{}{"status": domain.SessionArchived, "participant_count": 0})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return repository.ErrSessionNotFound
		}
		return tx.Where("session_id = ?", sessionID).Delete(&domain.Participant{}).Error
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("gorm: archive session %q: %w", sessionID, err)
	}
	return nil
}

func (r *GormSessionRepository) ListByParticipant(ctx context.Context, identity string) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.WithContext(ctx).
		Joins("JOIN participants ON participants.session_id = sessions.id").
		Where("participants.identity = ?", identity).
		Order("sessions.last_activity DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list sessions for identity %q: %w", identity, err)
	}
	return sessions, nil
}

func (r *GormSessionRepository) TouchActivity(ctx context.Context, sessionID string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND last_activity < ?", sessionID, at).
		Update("last_activity", at).Error
	if err != nil {
		return fmt.Errorf("gorm: touch activity for session %q: %w", sessionID, err)
	}
	return nil
}

// isDuplicateEntry detects a MySQL unique-constraint violation (1062).
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
