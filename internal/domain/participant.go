package domain

import "time"

// ParticipantStatus is the membership state of a participant within a
// session. invited -> active is the only forward transition; removal
// deletes the record and is terminal (a later re-invite creates a fresh
// invited record).
type ParticipantStatus string

const (
	ParticipantInvited ParticipantStatus = "invited"
	ParticipantActive  ParticipantStatus = "active"
)

// Participant is a session membership record. The (SessionID, Identity)
// pair is unique: one record per principal per session.
type Participant struct {
	ID        uint              `gorm:"primaryKey"`
	SessionID string            `gorm:"size:64;uniqueIndex:idx_session_identity;not null"`
	Identity  string            `gorm:"size:255;uniqueIndex:idx_session_identity;not null"`
	Role      Role              `gorm:"size:16;not null"`
	Status    ParticipantStatus `gorm:"size:16;index;not null"`
	InvitedBy string            `gorm:"size:255;not null"`
	JoinedAt  *time.Time        // nil until the invite is accepted
	CreatedAt time.Time         `gorm:"autoCreateTime"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime"`
}

// Active reports whether the participant has accepted its invite.
func (p *Participant) Active() bool {
	return p.Status == ParticipantActive
}

// IsOwner reports whether the participant currently holds the owner role.
func (p *Participant) IsOwner() bool {
	return p.Role == RoleOwner
}
