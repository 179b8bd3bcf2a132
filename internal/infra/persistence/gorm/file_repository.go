package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mir-akbar/CodeCollab-sub000/internal/domain"
	"github.com/mir-akbar/CodeCollab-sub000/internal/repository"
)

// GormFileRepository is the GORM implementation of ContentStore. Snapshots
// live in a longblob column keyed by (session_id, path).
type GormFileRepository struct {
	db *gorm.DB
}

// NewGormFileRepository creates a GormFileRepository.
func NewGormFileRepository(db *gorm.DB) *GormFileRepository {
	if db == nil {
		panic("database connection cannot be nil for GormFileRepository")
	}
	return &GormFileRepository{db: db}
}

func (r *GormFileRepository) Get(ctx context.Context, sessionID, path string) (*domain.FileSnapshot, error) {
	var snapshot domain.FileSnapshot
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND path = ?", sessionID, path).
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrFileNotFound
		}
		return nil, fmt.Errorf("gorm: get snapshot (%q, %q): %w", sessionID, path, err)
	}
	return &snapshot, nil
}

// Put upserts on the (session_id, path) unique index, refreshing content,
// size and modified-by in place on conflict.
func (r *GormFileRepository) Put(ctx context.Context, snapshot *domain.FileSnapshot) error {
	snapshot.Size = int64(len(snapshot.Content))
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "size", "modified_by", "updated_at"}),
	}).Create(snapshot).Error
	if err != nil {
		return fmt.Errorf("gorm: put snapshot (%q, %q): %w", snapshot.SessionID, snapshot.Path, err)
	}
	return nil
}

// List returns metadata only; content bytes are omitted so listing a
// session with large files stays cheap.
func (r *GormFileRepository) List(ctx context.Context, sessionID string) ([]domain.FileSnapshot, error) {
	var snapshots []domain.FileSnapshot
	err := r.db.WithContext(ctx).Model(&domain.FileSnapshot{}).
		Select("id", "session_id", "path", "size", "modified_by", "created_at", "updated_at").
		Where("session_id = ?", sessionID).
		Order("path ASC").
		Find(&snapshots).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list snapshots of session %q: %w", sessionID, err)
	}
	return snapshots, nil
}

func (r *GormFileRepository) Delete(ctx context.Context, sessionID, path string) error {
	res := r.db.WithContext(ctx).
		Where("session_id = ? AND path = ?", sessionID, path).
		Delete(&domain.FileSnapshot{})
	if res.Error != nil {
		return fmt.Errorf("gorm: delete snapshot (%q, %q): %w", sessionID, path, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrFileNotFound
	}
	return nil
}
