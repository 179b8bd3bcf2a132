package domain

import "time"

// SessionStatus is the lifecycle state of a session. The only legal
// transition is active -> archived, and it is irreversible.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionArchived SessionStatus = "archived"
)

// Session is a collaborative workspace. The creator always corresponds to
// the participant currently holding the owner role; ownership transfer
// rewrites both sides atomically.
type Session struct {
	ID              string        `gorm:"primaryKey;size:64"`
	Name            string        `gorm:"size:255;not null"`
	Description     string        `gorm:"size:1024"`
	Creator         string        `gorm:"size:255;index;not null"` // identity of the current owner
	Status          SessionStatus `gorm:"size:16;index;not null;default:'active'"`
	MaxParticipants int           `gorm:"not null;default:10"`
	AllowedDomain   string        `gorm:"size:255"` // empty means any email domain may be invited
	// ParticipantCount counts invited and active participants alike; it is
	// maintained inside the same transaction as every membership write.
	ParticipantCount int       `gorm:"not null;default:0"`
	LastActivity     time.Time `gorm:"index"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// Archived reports whether the session has reached its terminal state.
func (s *Session) Archived() bool {
	return s.Status == SessionArchived
}
