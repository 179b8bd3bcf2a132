package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mir-akbar/CodeCollab-sub000/internal/domain"
	"github.com/mir-akbar/CodeCollab-sub000/internal/repository"
	"github.com/mir-akbar/CodeCollab-sub000/internal/repository/mocks"
	"github.com/mir-akbar/CodeCollab-sub000/internal/service"
)

// fakeHub records hub calls without any websocket machinery.
type fakeHub struct {
	ensured   [][2]string
	broadcast []struct {
		sessionID, path string
		msg             []byte
	}
	rooms map[string]bool
}

var _ service.RoomHub = (*fakeHub)(nil)

func newFakeHub() *fakeHub {
	return &fakeHub{rooms: make(map[string]bool)}
}

func (f *fakeHub) EnsureRoom(sessionID, path string) {
	f.ensured = append(f.ensured, [2]string{sessionID, path})
	f.rooms[sessionID+"::"+path] = true
}

func (f *fakeHub) HasRoom(sessionID, path string) bool {
	return f.rooms[sessionID+"::"+path]
}

func (f *fakeHub) RoomMembers(sessionID, path string) []string {
	return nil
}

func (f *fakeHub) Broadcast(sessionID, path string, msg []byte) {
	f.broadcast = append(f.broadcast, struct {
		sessionID, path string
		msg             []byte
	}{sessionID, path, msg})
}

func newSyncService(t *testing.T) (*service.SyncService, *mocks.ContentStore, *mocks.StateRepository, *fakeHub) {
	t.Helper()
	content := new(mocks.ContentStore)
	state := new(mocks.StateRepository)
	hub := newFakeHub()
	svc := service.NewSyncService(content, state)
	svc.AttachHub(hub)
	return svc, content, state, hub
}

func TestSyncService_LoadInitialSnapshot_NeverPersisted(t *testing.T) {
	svc, content, _, _ := newSyncService(t)
	ctx := context.Background()

	content.On("Get", ctx, "s1", "main.go").Return(nil, repository.ErrFileNotFound).Once()

	data, err := svc.LoadInitialSnapshot(ctx, "s1", "main.go")

	require.NoError(t, err, "a fresh file starts empty, not with an error")
	assert.NotNil(t, data)
	assert.Empty(t, data)
	content.AssertExpectations(t)
}

func TestSyncService_LoadInitialSnapshot_ReturnsContent(t *testing.T) {
	svc, content, _, _ := newSyncService(t)
	ctx := context.Background()

	content.On("Get", ctx, "s1", "main.go").Return(&domain.FileSnapshot{
		SessionID: "s1",
		Path:      "main.go",
		Content:   []byte("package main"),
	}, nil).Once()

	data, err := svc.LoadInitialSnapshot(ctx, "s1", "main.go")

	require.NoError(t, err)
	assert.Equal(t, []byte("package main"), data)
}

func TestSyncService_LoadInitialSnapshot_StoreFailure(t *testing.T) {
	svc, content, _, _ := newSyncService(t)
	ctx := context.Background()

	content.On("Get", ctx, "s1", "main.go").Return(nil, errors.New("connection reset")).Once()

	_, err := svc.LoadInitialSnapshot(ctx, "s1", "main.go")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInternalServer))
}

func TestSyncService_PersistSnapshot_WritesAndMarksActivity(t *testing.T) {
	svc, content, state, _ := newSyncService(t)
	ctx := context.Background()

	content.On("Put", ctx, mock.MatchedBy(func(s *domain.FileSnapshot) bool {
		assert.Equal(t, "s1", s.SessionID)
		assert.Equal(t, "main.go", s.Path)
		assert.Equal(t, "bob@example.com", s.ModifiedBy)
		return true
	})).Return(nil).Once()
	state.On("MarkActivity", ctx, "s1", mock.AnythingOfType("time.Time")).Return(nil).Once()

	snapshot, err := svc.PersistSnapshot(ctx, "s1", "main.go", []byte("package main"), "bob@example.com")

	require.NoError(t, err)
	assert.Equal(t, []byte("package main"), snapshot.Content)

	content.AssertExpectations(t)
	state.AssertExpectations(t)
}

func TestSyncService_PersistSnapshot_ActivityMarkFailureIsAdvisory(t *testing.T) {
	svc, content, state, _ := newSyncService(t)
	ctx := context.Background()

	content.On("Put", ctx, mock.Anything).Return(nil).Once()
	state.On("MarkActivity", ctx, "s1", mock.AnythingOfType("time.Time")).
		Return(errors.New("redis down")).Once()

	_, err := svc.PersistSnapshot(ctx, "s1", "main.go", []byte("x"), "bob@example.com")

	assert.NoError(t, err, "the snapshot write landed; activity marks are best effort")
}

func TestSyncService_FileExists(t *testing.T) {
	svc, content, _, _ := newSyncService(t)
	ctx := context.Background()

	content.On("Get", ctx, "s1", "present.go").Return(&domain.FileSnapshot{}, nil).Once()
	content.On("Get", ctx, "s1", "absent.go").Return(nil, repository.ErrFileNotFound).Once()

	assert.True(t, svc.FileExists(ctx, "s1", "present.go"))
	assert.False(t, svc.FileExists(ctx, "s1", "absent.go"))
}

func TestSyncService_DeleteFile_NotifiesLiveRoom(t *testing.T) {
	svc, content, _, hub := newSyncService(t)
	ctx := context.Background()

	hub.rooms["s1::old.go"] = true
	content.On("Delete", ctx, "s1", "old.go").Return(nil).Once()

	err := svc.DeleteFile(ctx, "s1", "old.go", "alice@example.com")

	require.NoError(t, err)
	require.Len(t, hub.broadcast, 1)

	var notice service.FileNotice
	require.NoError(t, json.Unmarshal(hub.broadcast[0].msg, &notice))
	assert.Equal(t, "file-removed", notice.Type)
	assert.Equal(t, "old.go", notice.Path)
	assert.Equal(t, "alice@example.com", notice.Identity)
}

func TestSyncService_DeleteFile_Missing(t *testing.T) {
	svc, content, _, hub := newSyncService(t)
	ctx := context.Background()

	content.On("Delete", ctx, "s1", "ghost.go").Return(repository.ErrFileNotFound).Once()

	err := svc.DeleteFile(ctx, "s1", "ghost.go", "alice@example.com")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrFileNotFound))
	assert.Empty(t, hub.broadcast)
}

func TestSyncService_NotifyRoom_NoLiveRoomIsNoop(t *testing.T) {
	svc, _, _, hub := newSyncService(t)

	svc.NotifyRoom("s1", "nobody.go", service.FileNotice{Type: "file-added", Path: "nobody.go"})

	assert.Empty(t, hub.broadcast)
}

func TestSyncService_EnsureRoom(t *testing.T) {
	svc, _, _, hub := newSyncService(t)

	svc.EnsureRoom("s1", "new.go")

	require.Len(t, hub.ensured, 1)
	assert.Equal(t, [2]string{"s1", "new.go"}, hub.ensured[0])
	assert.True(t, hub.HasRoom("s1", "new.go"))
}
