package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mir-akbar/CodeCollab-sub000/internal/domain"
	"github.com/mir-akbar/CodeCollab-sub000/internal/repository"
)

// DefaultMaxParticipants applies when a session is created without an
// explicit participant limit.
const DefaultMaxParticipants = 10

// SessionDirectory owns the session/participant lifecycle and enforces the
// invariants the permission tables cannot see alone: exactly one owner per
// active session, invited -> active as the only forward transition, and
// ownership movable only through TransferOwnership. Every mutating
// operation serializes per session id.
type SessionDirectory struct {
	sessions     repository.SessionRepository
	participants repository.ParticipantRepository
	locks        *sessionLocks
}

// NewSessionDirectory creates a SessionDirectory.
func NewSessionDirectory(sessions repository.SessionRepository, participants repository.ParticipantRepository) *SessionDirectory {
	if sessions == nil {
		panic("SessionRepository cannot be nil for SessionDirectory")
	}
	if participants == nil {
		panic("ParticipantRepository cannot be nil for SessionDirectory")
	}
	return &SessionDirectory{
		sessions:     sessions,
		participants: participants,
		locks:        newSessionLocks(),
	}
}

// CreateSessionInput carries the caller-supplied session attributes.
// ID is optional; a UUID is generated when it is empty.
type CreateSessionInput struct {
	ID              string
	Name            string
	Description     string
	Creator         string
	MaxParticipants int
	AllowedDomain   string
}

// CreateSession persists a new active session together with its owner
// participant. The two writes are one logical transaction: a session must
// never exist without exactly one owner.
func (d *SessionDirectory) CreateSession(ctx context.Context, in CreateSessionInput) (*domain.Session, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Creator) == "" {
		return nil, ErrValidation
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.MaxParticipants <= 0 {
		in.MaxParticipants = DefaultMaxParticipants
	}

	now := time.Now()
	session := &domain.Session{
		ID:              in.ID,
		Name:            in.Name,
		Description:     in.Description,
		Creator:         in.Creator,
		Status:          domain.SessionActive,
		MaxParticipants: in.MaxParticipants,
		AllowedDomain:   strings.ToLower(strings.TrimSpace(in.AllowedDomain)),
		LastActivity:    now,
	}
	owner := &domain.Participant{
		SessionID: in.ID,
		Identity:  in.Creator,
		Role:      domain.RoleOwner,
		Status:    domain.ParticipantActive,
		InvitedBy: in.Creator,
		JoinedAt:  &now,
	}

	if err := d.sessions.CreateWithOwner(ctx, session, owner); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, ErrSessionExists
		}
		logrus.WithError(err).WithField("session_id", in.ID).Error("Failed to create session")
		return nil, ErrInternalServer
	}

	logrus.WithFields(logrus.Fields{
		"session_id": session.ID,
		"creator":    session.Creator,
	}).Info("Session created")
	return session, nil
}

// Invite adds inviteeIdentity to the session with requestedRole, or
// reactivates a still-pending invite with the new role. The inviter must
// be an active participant holding the invite permission and may only
// grant roles strictly below its own level.
func (d *SessionDirectory) Invite(ctx context.Context, sessionID, inviterIdentity, inviteeIdentity string, requestedRole domain.Role) (*domain.Participant, error) {
	if sessionID == "" || inviterIdentity == "" || inviteeIdentity == "" {
		return nil, ErrValidation
	}
	if inviterIdentity == inviteeIdentity {
		return nil, ErrSelfOperation
	}
	if !requestedRole.Valid() {
		return nil, ErrUnknownRole
	}

	release := d.locks.acquire(sessionID)
	defer release()

	session, err := d.activeSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	inviter, err := d.activeParticipant(ctx, sessionID, inviterIdentity)
	if err != nil {
		return nil, err
	}
	if !domain.HasPermission(inviter.Role, domain.ActionInvite) {
		return nil, ErrPermissionDenied
	}
	if !domain.CanAssign(inviter.Role, requestedRole) {
		return nil, ErrPermissionDenied
	}
	if !domainAllowed(session.AllowedDomain, inviteeIdentity) {
		return nil, ErrValidation
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"inviter":    inviterIdentity,
		"invitee":    inviteeIdentity,
		"role":       requestedRole,
	})

	existing, err := d.participants.Find(ctx, sessionID, inviteeIdentity)
	switch {
	case err == nil:
		if existing.Active() {
			return nil, ErrAlreadyParticipant
		}
		// Pending invite: reactivate with the new role and inviter.
		existing.Role = requestedRole
		existing.InvitedBy = inviterIdentity
		existing.Status = domain.ParticipantInvited
		existing.JoinedAt = nil
		if err := d.participants.Update(ctx, existing); err != nil {
			logCtx.WithError(err).Error("Failed to reactivate invite")
			return nil, ErrInternalServer
		}
		logCtx.Info("Pending invite refreshed")
		return existing, nil

	case errors.Is(err, repository.ErrNotFound):
		if session.ParticipantCount >= session.MaxParticipants {
			return nil, ErrSessionFull
		}
		participant := &domain.Participant{
			SessionID: sessionID,
			Identity:  inviteeIdentity,
			Role:      requestedRole,
			Status:    domain.ParticipantInvited,
			InvitedBy: inviterIdentity,
		}
		if err := d.participants.Create(ctx, participant); err != nil {
			if errors.Is(err, repository.ErrDuplicateEntry) {
				// Lost a race outside our lock scope (e.g. another node).
				return nil, ErrAlreadyParticipant
			}
			logCtx.WithError(err).Error("Failed to create invite")
			return nil, ErrInternalServer
		}
		logCtx.Info("Participant invited")
		return participant, nil

	default:
		logCtx.WithError(err).Error("Failed to look up invitee")
		return nil, ErrInternalServer
	}
}

// AcceptInvite moves the participant from invited to active and stamps the
// join time. This is the only path from invited to active.
func (d *SessionDirectory) AcceptInvite(ctx context.Context, sessionID, identity string) (*domain.Participant, error) {
	release := d.locks.acquire(sessionID)
	defer release()

	if _, err := d.activeSession(ctx, sessionID); err != nil {
		return nil, err
	}
	participant, err := d.findParticipant(ctx, sessionID, identity)
	if err != nil {
		return nil, err
	}
	if participant.Active() {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	participant.Status = domain.ParticipantActive
	participant.JoinedAt = &now
	if err := d.participants.Update(ctx, participant); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"identity":   identity,
		}).Error("Failed to accept invite")
		return nil, ErrInternalServer
	}
	logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"identity":   identity,
		"role":       participant.Role,
	}).Info("Invite accepted")
	return participant, nil
}

// RemoveParticipant deletes targetIdentity's membership. The owner is
// never removable while holding the role, and a remover may only remove
// participants strictly below its own level.
func (d *SessionDirectory) RemoveParticipant(ctx context.Context, sessionID, removerIdentity, targetIdentity string) error {
	release := d.locks.acquire(sessionID)
	defer release()

	if _, err := d.activeSession(ctx, sessionID); err != nil {
		return err
	}
	remover, err := d.activeParticipant(ctx, sessionID, removerIdentity)
	if err != nil {
		return err
	}
	if !domain.HasPermission(remover.Role, domain.ActionRemove) {
		return ErrPermissionDenied
	}
	target, err := d.findParticipant(ctx, sessionID, targetIdentity)
	if err != nil {
		return err
	}
	if target.IsOwner() {
		return ErrOwnerImmutable
	}
	if remover.Role.Level() <= target.Role.Level() {
		return ErrPermissionDenied
	}

	if err := d.participants.Delete(ctx, sessionID, targetIdentity); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrParticipantNotFound
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"target":     targetIdentity,
		}).Error("Failed to remove participant")
		return ErrInternalServer
	}
	logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"remover":    removerIdentity,
		"target":     targetIdentity,
	}).Info("Participant removed")
	return nil
}

// LeaveSession lets a participant remove itself. The owner cannot leave
// while holding the role; ownership must be transferred first.
func (d *SessionDirectory) LeaveSession(ctx context.Context, sessionID, identity string) error {
	release := d.locks.acquire(sessionID)
	defer release()

	if _, err := d.activeSession(ctx, sessionID); err != nil {
		return err
	}
	participant, err := d.findParticipant(ctx, sessionID, identity)
	if err != nil {
		return err
	}
	if participant.IsOwner() {
		return ErrOwnerImmutable
	}

	if err := d.participants.Delete(ctx, sessionID, identity); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrParticipantNotFound
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"identity":   identity,
		}).Error("Failed to leave session")
		return ErrInternalServer
	}
	logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"identity":   identity,
	}).Info("Participant left session")
	return nil
}

// TransferOwnership atomically demotes the current owner to admin and
// promotes newOwnerIdentity, then rewrites the session creator. This is
// the sole operation allowed to touch the owner invariant.
func (d *SessionDirectory) TransferOwnership(ctx context.Context, sessionID, currentOwnerIdentity, newOwnerIdentity string) error {
	if currentOwnerIdentity == newOwnerIdentity {
		return ErrSelfOperation
	}

	release := d.locks.acquire(sessionID)
	defer release()

	if _, err := d.activeSession(ctx, sessionID); err != nil {
		return err
	}
	current, err := d.activeParticipant(ctx, sessionID, currentOwnerIdentity)
	if err != nil {
		return err
	}
	if !current.IsOwner() {
		return ErrPermissionDenied
	}
	target, err := d.findParticipant(ctx, sessionID, newOwnerIdentity)
	if err != nil {
		return err
	}
	if !target.Active() {
		return ErrInvalidTransition
	}

	if err := d.sessions.TransferOwnership(ctx, sessionID, currentOwnerIdentity, newOwnerIdentity); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrParticipantNotFound
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"from":       currentOwnerIdentity,
			"to":         newOwnerIdentity,
		}).Error("Failed to transfer ownership")
		return ErrInternalServer
	}
	logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"from":       currentOwnerIdentity,
		"to":         newOwnerIdentity,
	}).Info("Ownership transferred")
	return nil
}

// UpdateParticipantRole changes targetIdentity's role. The owner role is
// immutable through this call in both directions: it can neither be
// granted nor taken away here.
func (d *SessionDirectory) UpdateParticipantRole(ctx context.Context, sessionID, updaterIdentity, targetIdentity string, newRole domain.Role) (*domain.Participant, error) {
	if !newRole.Valid() {
		return nil, ErrUnknownRole
	}
	if newRole == domain.RoleOwner {
		return nil, ErrOwnerImmutable
	}
	if updaterIdentity == targetIdentity {
		return nil, ErrSelfOperation
	}

	release := d.locks.acquire(sessionID)
	defer release()

	if _, err := d.activeSession(ctx, sessionID); err != nil {
		return nil, err
	}
	updater, err := d.activeParticipant(ctx, sessionID, updaterIdentity)
	if err != nil {
		return nil, err
	}
	if !domain.HasPermission(updater.Role, domain.ActionChangeRoles) {
		return nil, ErrPermissionDenied
	}
	if !domain.CanAssign(updater.Role, newRole) {
		return nil, ErrPermissionDenied
	}
	target, err := d.findParticipant(ctx, sessionID, targetIdentity)
	if err != nil {
		return nil, err
	}
	if target.IsOwner() {
		return nil, ErrOwnerImmutable
	}
	if updater.Role.Level() <= target.Role.Level() {
		return nil, ErrPermissionDenied
	}

	target.Role = newRole
	if err := d.participants.Update(ctx, target); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"target":     targetIdentity,
		}).Error("Failed to update participant role")
		return nil, ErrInternalServer
	}
	logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"updater":    updaterIdentity,
		"target":     targetIdentity,
		"role":       newRole,
	}).Info("Participant role updated")
	return target, nil
}

// ArchiveSession ends collaboration: the session becomes archived
// (terminal) and every participant record is deleted. The session row
// itself is kept for audit. Only the owner may archive.
func (d *SessionDirectory) ArchiveSession(ctx context.Context, sessionID, identity string) error {
	release := d.locks.acquire(sessionID)
	defer release()

	if _, err := d.activeSession(ctx, sessionID); err != nil {
		return err
	}
	caller, err := d.activeParticipant(ctx, sessionID, identity)
	if err != nil {
		return err
	}
	if !domain.HasPermission(caller.Role, domain.ActionDelete) {
		return ErrPermissionDenied
	}

	if err := d.sessions.Archive(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to archive session")
		return ErrInternalServer
	}
	logrus.WithFields(logrus.Fields{
		"session_id":  sessionID,
		"archived_by": identity,
	}).Info("Session archived")
	return nil
}

// AccessResult is the structured answer of CheckAccess.
type AccessResult struct {
	Allowed bool        `json:"allowed"`
	Role    domain.Role `json:"role,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// CheckAccess is a read-only probe used at the access-control boundary.
// It never returns an error: every failure mode becomes a structured deny.
func (d *SessionDirectory) CheckAccess(ctx context.Context, sessionID, identity string, requiredRole domain.Role) AccessResult {
	if !requiredRole.Valid() {
		requiredRole = domain.RoleViewer
	}

	session, err := d.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AccessResult{Reason: "session not found"}
		}
		logrus.WithError(err).WithField("session_id", sessionID).Error("CheckAccess: session lookup failed")
		return AccessResult{Reason: "internal error"}
	}
	if session.Archived() {
		return AccessResult{Reason: "session archived"}
	}

	participant, err := d.participants.Find(ctx, sessionID, identity)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AccessResult{Reason: "not a participant"}
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"identity":   identity,
		}).Error("CheckAccess: participant lookup failed")
		return AccessResult{Reason: "internal error"}
	}
	if !participant.Active() {
		return AccessResult{Role: participant.Role, Reason: "invite not accepted"}
	}
	if !participant.Role.AtLeast(requiredRole) {
		return AccessResult{Role: participant.Role, Reason: "insufficient role"}
	}
	return AccessResult{Allowed: true, Role: participant.Role}
}

// GetSession returns the session visible to identity.
func (d *SessionDirectory) GetSession(ctx context.Context, sessionID, identity string) (*domain.Session, error) {
	if access := d.CheckAccess(ctx, sessionID, identity, domain.RoleViewer); !access.Allowed {
		return nil, accessError(access)
	}
	session, err := d.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, ErrInternalServer
	}
	return session, nil
}

// ListParticipants returns every participant record of the session,
// visible to any participant with at least viewer access.
func (d *SessionDirectory) ListParticipants(ctx context.Context, sessionID, identity string) ([]domain.Participant, error) {
	if access := d.CheckAccess(ctx, sessionID, identity, domain.RoleViewer); !access.Allowed {
		return nil, accessError(access)
	}
	participants, err := d.participants.ListBySession(ctx, sessionID)
	if err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to list participants")
		return nil, ErrInternalServer
	}
	return participants, nil
}

// ListSessions returns all sessions identity participates in.
func (d *SessionDirectory) ListSessions(ctx context.Context, identity string) ([]domain.Session, error) {
	sessions, err := d.sessions.ListByParticipant(ctx, identity)
	if err != nil {
		logrus.WithError(err).WithField("identity", identity).Error("Failed to list sessions")
		return nil, ErrInternalServer
	}
	return sessions, nil
}

// --- helpers ---

func (d *SessionDirectory) activeSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := d.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		logrus.WithError(err).WithField("session_id", sessionID).Error("Session lookup failed")
		return nil, ErrInternalServer
	}
	if session.Archived() {
		return nil, ErrSessionArchived
	}
	return session, nil
}

func (d *SessionDirectory) findParticipant(ctx context.Context, sessionID, identity string) (*domain.Participant, error) {
	participant, err := d.participants.Find(ctx, sessionID, identity)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrParticipantNotFound
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"identity":   identity,
		}).Error("Participant lookup failed")
		return nil, ErrInternalServer
	}
	return participant, nil
}

func (d *SessionDirectory) activeParticipant(ctx context.Context, sessionID, identity string) (*domain.Participant, error) {
	participant, err := d.findParticipant(ctx, sessionID, identity)
	if err != nil {
		return nil, err
	}
	if !participant.Active() {
		return nil, ErrPermissionDenied
	}
	return participant, nil
}

// accessError translates a CheckAccess denial back into the taxonomy for
// callers that do want an error.
func accessError(access AccessResult) error {
	switch access.Reason {
	case "session not found":
		return ErrSessionNotFound
	case "session archived":
		return ErrSessionArchived
	case "not a participant", "invite not accepted", "insufficient role":
		return ErrPermissionDenied
	default:
		return ErrInternalServer
	}
}

// domainAllowed applies the session's email-domain allowlist to invitees
// that look like email addresses. Bare identities pass through unchanged.
func domainAllowed(allowedDomain, identity string) bool {
	if allowedDomain == "" {
		return true
	}
	at := strings.LastIndex(identity, "@")
	if at < 0 {
		return true
	}
	return strings.EqualFold(identity[at+1:], allowedDomain)
}
