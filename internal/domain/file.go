package domain

import "time"

// FileSnapshot is the latest persisted content of one file within a
// session. It is a full materialized state, not an incremental update;
// merge semantics live entirely in the client-side document layer.
type FileSnapshot struct {
	ID         uint   `gorm:"primaryKey"`
	SessionID  string `gorm:"size:64;uniqueIndex:idx_session_path;not null"`
	Path       string `gorm:"size:512;uniqueIndex:idx_session_path;not null"`
	Content    []byte `gorm:"type:longblob"`
	Size       int64  `gorm:"not null;default:0"`
	ModifiedBy string `gorm:"size:255"`
	CreatedAt  time.Time
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}
