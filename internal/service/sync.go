package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mir-akbar/CodeCollab-sub000/internal/domain"
	"github.com/mir-akbar/CodeCollab-sub000/internal/repository"
)

// RoomHub is the slice of the realtime layer the sync bridge needs:
// room lifecycle hooks and room-scoped fan-out. Implemented by hub.Hub.
type RoomHub interface {
	EnsureRoom(sessionID, path string)
	HasRoom(sessionID, path string) bool
	RoomMembers(sessionID, path string) []string
	Broadcast(sessionID, path string, message []byte)
}

// FileNotice is the control event announced to a room when a file appears
// or disappears outside the editing flow (upload, deletion).
type FileNotice struct {
	Type     string `json:"type"` // "file-added" or "file-removed"
	Path     string `json:"path"`
	Identity string `json:"identity,omitempty"`
}

// SyncService bridges room activity to persisted content snapshots. It
// performs no conflict resolution: merge semantics live in the opaque
// document-update layer the rooms relay.
type SyncService struct {
	content repository.ContentStore
	state   repository.StateRepository
	hub     RoomHub
}

// NewSyncService creates a SyncService. The hub is attached after
// construction because the hub itself depends on this service.
func NewSyncService(content repository.ContentStore, state repository.StateRepository) *SyncService {
	if content == nil {
		panic("ContentStore cannot be nil for SyncService")
	}
	if state == nil {
		panic("StateRepository cannot be nil for SyncService")
	}
	return &SyncService{content: content, state: state}
}

// AttachHub wires the realtime layer in. Must be called once during
// bootstrap, before any room traffic.
func (s *SyncService) AttachHub(hub RoomHub) {
	if hub == nil {
		panic("RoomHub cannot be nil for SyncService")
	}
	s.hub = hub
}

// LoadInitialSnapshot returns the latest persisted content for the file.
// A file that has never been persisted yields empty content, never an
// error: a fresh room starts from an empty document.
func (s *SyncService) LoadInitialSnapshot(ctx context.Context, sessionID, path string) ([]byte, error) {
	snapshot, err := s.content.Get(ctx, sessionID, path)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []byte{}, nil
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"path":       path,
		}).Error("Failed to load snapshot")
		return nil, ErrInternalServer
	}
	return snapshot.Content, nil
}

// PersistSnapshot writes a client-reconciled content snapshot back to the
// store and marks the session active. Size and modified metadata are
// refreshed by the store.
func (s *SyncService) PersistSnapshot(ctx context.Context, sessionID, path string, content []byte, identity string) (*domain.FileSnapshot, error) {
	snapshot := &domain.FileSnapshot{
		SessionID:  sessionID,
		Path:       path,
		Content:    content,
		ModifiedBy: identity,
	}
	if err := s.content.Put(ctx, snapshot); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"path":       path,
		}).Error("Failed to persist snapshot")
		return nil, ErrInternalServer
	}
	if err := s.state.MarkActivity(ctx, sessionID, time.Now()); err != nil {
		// Activity marks are advisory; the snapshot write already landed.
		logrus.WithError(err).WithField("session_id", sessionID).Warn("Failed to mark session activity")
	}
	logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"path":       path,
		"size":       snapshot.Size,
		"identity":   identity,
	}).Debug("Snapshot persisted")
	return snapshot, nil
}

// FileExists reports whether a snapshot has ever been persisted for the
// file. Lookup errors count as existing so callers do not announce a
// "new" file on a hiccup.
func (s *SyncService) FileExists(ctx context.Context, sessionID, path string) bool {
	_, err := s.content.Get(ctx, sessionID, path)
	return !errors.Is(err, repository.ErrNotFound)
}

// ListFiles returns snapshot metadata for every persisted file of the
// session.
func (s *SyncService) ListFiles(ctx context.Context, sessionID string) ([]domain.FileSnapshot, error) {
	snapshots, err := s.content.List(ctx, sessionID)
	if err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to list files")
		return nil, ErrInternalServer
	}
	return snapshots, nil
}

// DeleteFile removes the persisted snapshot and tells the room, if one is
// live, that the file is gone.
func (s *SyncService) DeleteFile(ctx context.Context, sessionID, path, identity string) error {
	if err := s.content.Delete(ctx, sessionID, path); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrFileNotFound
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"path":       path,
		}).Error("Failed to delete file")
		return ErrInternalServer
	}
	s.NotifyRoom(sessionID, path, FileNotice{Type: "file-removed", Path: path, Identity: identity})
	return nil
}

// EnsureRoom creates the room for a newly available resource so external
// collaborators (e.g. an upload handler) can announce it before any editor
// joins.
func (s *SyncService) EnsureRoom(sessionID, path string) {
	if s.hub == nil {
		return
	}
	s.hub.EnsureRoom(sessionID, path)
}

// NotifyRoom broadcasts a file lifecycle notice to the room's live
// members. A room that was never created or is already gone is a no-op.
func (s *SyncService) NotifyRoom(sessionID, path string, notice FileNotice) {
	if s.hub == nil || !s.hub.HasRoom(sessionID, path) {
		return
	}
	payload, err := json.Marshal(notice)
	if err != nil {
		logrus.WithError(err).Warn("Failed to marshal file notice")
		return
	}
	s.hub.Broadcast(sessionID, path, payload)
}
