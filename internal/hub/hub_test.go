package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mir-akbar/CodeCollab-sub000/internal/domain"
	"github.com/mir-akbar/CodeCollab-sub000/internal/repository"
	"github.com/mir-akbar/CodeCollab-sub000/internal/repository/mocks"
	"github.com/mir-akbar/CodeCollab-sub000/internal/service"
)

// newTestHub builds a Hub whose async calls into the state store and the
// content store are tolerated but not required. Membership operations are
// synchronous, so Run does not need to be started.
func newTestHub(t *testing.T) (*Hub, *mocks.ContentStore, *mocks.StateRepository) {
	t.Helper()
	content := new(mocks.ContentStore)
	state := new(mocks.StateRepository)

	content.On("Get", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, repository.ErrFileNotFound).Maybe()
	state.On("SetRoomPresence", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil).Maybe()
	state.On("MarkActivity", mock.Anything, mock.Anything, mock.Anything).
		Return(nil).Maybe()

	syncService := service.NewSyncService(content, state)
	return NewHub(syncService, state), content, state
}

// newTestClient builds a connection-less client. shutdown and enqueue
// tolerate a nil socket, which is all the membership paths touch.
func newTestClient(h *Hub, sessionID, path, identity string) *Client {
	return NewClient(h, nil, sessionID, path, identity)
}

func awaitFrame(t *testing.T, c *Client) outbound {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "send queue closed while waiting for a frame")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a frame")
	}
	return outbound{}
}

// awaitFrameOfType reads frames until one carries the wanted control type.
// Frames arriving from concurrent goroutines (snapshot delivery, presence
// notices) have no deterministic order.
func awaitFrameOfType(t *testing.T, c *Client, wanted string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 5; i++ {
		msg := awaitFrame(t, c)
		var decoded map[string]interface{}
		if err := json.Unmarshal(msg.data, &decoded); err != nil {
			continue
		}
		if decoded["type"] == wanted {
			return decoded
		}
	}
	t.Fatalf("no %q frame arrived", wanted)
	return nil
}

func TestHub_JoinRoom_CreatesRoomLazily(t *testing.T) {
	h, _, _ := newTestHub(t)

	assert.False(t, h.HasRoom("s1", "main.go"))

	c := newTestClient(h, "s1", "main.go", "alice@example.com")
	count := h.JoinRoom(c)

	assert.Equal(t, 1, count)
	assert.True(t, h.HasRoom("s1", "main.go"))
	assert.Equal(t, []string{"alice@example.com"}, h.RoomMembers("s1", "main.go"))
}

func TestHub_JoinRoom_DisplacesDuplicateIdentity(t *testing.T) {
	h, _, _ := newTestHub(t)

	first := newTestClient(h, "s1", "main.go", "alice@example.com")
	second := newTestClient(h, "s1", "main.go", "alice@example.com")

	h.JoinRoom(first)
	count := h.JoinRoom(second)

	assert.Equal(t, 1, count, "the replaced connection must not be counted")
	assert.Equal(t, []string{"alice@example.com"}, h.RoomMembers("s1", "main.go"))

	// The displaced connection's queue is closed, so it accepts nothing.
	assert.False(t, first.enqueue(outbound{data: []byte("x")}))
}

func TestHub_JoinRoom_DeliversInitialSnapshot(t *testing.T) {
	content := new(mocks.ContentStore)
	state := new(mocks.StateRepository)
	content.On("Get", mock.Anything, "s1", "main.go").Return(&domain.FileSnapshot{
		SessionID: "s1",
		Path:      "main.go",
		Content:   []byte("package main"),
	}, nil).Once()
	state.On("SetRoomPresence", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil).Maybe()
	state.On("MarkActivity", mock.Anything, mock.Anything, mock.Anything).
		Return(nil).Maybe()
	h := NewHub(service.NewSyncService(content, state), state)

	c := newTestClient(h, "s1", "main.go", "alice@example.com")
	h.JoinRoom(c)

	snapshot := awaitFrameOfType(t, c, "snapshot")
	assert.Equal(t, "main.go", snapshot["path"])
	assert.Equal(t, "package main", snapshot["content"])
}

func TestHub_Leave_DestroysEmptyRoom(t *testing.T) {
	h, _, _ := newTestHub(t)

	c := newTestClient(h, "s1", "main.go", "alice@example.com")
	h.JoinRoom(c)
	require.True(t, h.HasRoom("s1", "main.go"))

	h.Leave(c)

	assert.False(t, h.HasRoom("s1", "main.go"), "the last leave destroys the room")

	// A rejoin by the same identity creates a fresh room.
	again := newTestClient(h, "s1", "main.go", "alice@example.com")
	assert.Equal(t, 1, h.JoinRoom(again))
	assert.True(t, h.HasRoom("s1", "main.go"))
}

func TestHub_Leave_Idempotent(t *testing.T) {
	h, _, _ := newTestHub(t)

	c := newTestClient(h, "s1", "main.go", "alice@example.com")
	h.JoinRoom(c)
	h.Leave(c)
	h.Leave(c) // second call must be a harmless no-op

	assert.False(t, h.HasRoom("s1", "main.go"))
}

func TestHub_JoinRoom_NotifiesExistingMembers(t *testing.T) {
	h, _, _ := newTestHub(t)

	alice := newTestClient(h, "s1", "main.go", "alice@example.com")
	h.JoinRoom(alice)

	bob := newTestClient(h, "s1", "main.go", "bob@example.com")
	h.JoinRoom(bob)

	notice := awaitFrameOfType(t, alice, "user-joined")
	assert.Equal(t, "bob@example.com", notice["identity"])
	assert.Equal(t, float64(2), notice["members"])
}

func TestHub_Leave_NotifiesRemainingMembers(t *testing.T) {
	h, _, _ := newTestHub(t)

	alice := newTestClient(h, "s1", "main.go", "alice@example.com")
	bob := newTestClient(h, "s1", "main.go", "bob@example.com")
	h.JoinRoom(alice)
	h.JoinRoom(bob)

	h.Leave(bob)

	notice := awaitFrameOfType(t, alice, "user-left")
	assert.Equal(t, "bob@example.com", notice["identity"])
	assert.Equal(t, float64(1), notice["members"])
}

func TestHub_BroadcastToRoom_ExcludesSender(t *testing.T) {
	h, _, _ := newTestHub(t)

	alice := newTestClient(h, "s1", "main.go", "alice@example.com")
	bob := newTestClient(h, "s1", "main.go", "bob@example.com")
	h.JoinRoom(alice)
	h.JoinRoom(bob)

	// Drain the join-time frames so only the broadcast remains.
	awaitFrameOfType(t, alice, "user-joined")
	awaitFrameOfType(t, alice, "snapshot")
	awaitFrameOfType(t, bob, "snapshot")

	payload := []byte(`{"type":"cursor","line":42}`)
	h.BroadcastToRoom(RoomKey("s1", "main.go"), payload, alice)

	got := awaitFrame(t, bob)
	assert.Equal(t, payload, got.data)

	select {
	case msg := <-alice.send:
		t.Fatalf("sender received its own broadcast: %s", msg.data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Broadcast_EvictsPeerWithFullQueue(t *testing.T) {
	h, _, _ := newTestHub(t)

	alice := newTestClient(h, "s1", "main.go", "alice@example.com")
	bob := newTestClient(h, "s1", "main.go", "bob@example.com")
	h.JoinRoom(alice)
	h.JoinRoom(bob)

	// Saturate bob's outbound queue; nobody is draining it.
	for bob.enqueue(outbound{data: []byte("fill")}) {
	}

	h.BroadcastToRoom(RoomKey("s1", "main.go"), []byte("update"), alice)

	assert.Equal(t, []string{"alice@example.com"}, h.RoomMembers("s1", "main.go"),
		"the peer that could not keep up is removed, the room keeps serving")
	assert.True(t, h.HasRoom("s1", "main.go"))
}

func TestHub_SendToIdentity(t *testing.T) {
	h, _, _ := newTestHub(t)

	alice := newTestClient(h, "s1", "main.go", "alice@example.com")
	h.JoinRoom(alice)
	awaitFrameOfType(t, alice, "snapshot")

	ok := h.SendToIdentity("s1", "main.go", "alice@example.com", []byte("direct"))
	require.True(t, ok)
	assert.Equal(t, []byte("direct"), awaitFrame(t, alice).data)

	assert.False(t, h.SendToIdentity("s1", "main.go", "ghost@example.com", []byte("direct")))
	assert.False(t, h.SendToIdentity("other", "main.go", "alice@example.com", []byte("direct")))
}

func TestHub_RoomsAreIsolatedPerFile(t *testing.T) {
	h, _, _ := newTestHub(t)

	alice := newTestClient(h, "s1", "main.go", "alice@example.com")
	bob := newTestClient(h, "s1", "util.go", "bob@example.com")
	h.JoinRoom(alice)
	h.JoinRoom(bob)
	awaitFrameOfType(t, alice, "snapshot")
	awaitFrameOfType(t, bob, "snapshot")

	h.BroadcastToRoom(RoomKey("s1", "main.go"), []byte("update"), nil)

	assert.Equal(t, []byte("update"), awaitFrame(t, alice).data)
	select {
	case msg := <-bob.send:
		t.Fatalf("crossed room boundary: %s", msg.data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Sweep_ReclaimsEnsuredEmptyRoom(t *testing.T) {
	h, _, _ := newTestHub(t)

	h.EnsureRoom("s1", "pending.go")
	require.True(t, h.HasRoom("s1", "pending.go"))

	h.sweep()

	assert.False(t, h.HasRoom("s1", "pending.go"))
}

func TestHub_Sweep_EvictsIdleConnections(t *testing.T) {
	h, _, _ := newTestHub(t)

	c := newTestClient(h, "s1", "main.go", "alice@example.com")
	h.JoinRoom(c)
	c.lastActive.Store(time.Now().Add(-2 * idleTimeout).UnixNano())

	h.sweep()

	assert.False(t, h.HasRoom("s1", "main.go"), "an idle connection's room empties and dies")
}

func TestHub_Stop_ClosesEveryConnection(t *testing.T) {
	h, _, _ := newTestHub(t)

	alice := newTestClient(h, "s1", "main.go", "alice@example.com")
	bob := newTestClient(h, "s2", "other.go", "bob@example.com")
	h.JoinRoom(alice)
	h.JoinRoom(bob)

	h.Stop()

	assert.False(t, h.HasRoom("s1", "main.go"))
	assert.False(t, h.HasRoom("s2", "other.go"))
	assert.False(t, alice.enqueue(outbound{data: []byte("x")}))
	assert.False(t, bob.enqueue(outbound{data: []byte("x")}))
}

func TestHub_PresencePublishesLatestCountPerRoom(t *testing.T) {
	content := new(mocks.ContentStore)
	state := new(mocks.StateRepository)
	content.On("Get", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, repository.ErrFileNotFound).Maybe()
	state.On("MarkActivity", mock.Anything, mock.Anything, mock.Anything).
		Return(nil).Maybe()
	h := NewHub(service.NewSyncService(content, state), state)

	published := make(chan int, 1)
	state.On("SetRoomPresence", mock.Anything, RoomKey("s1", "main.go"), 3, presenceTTL).
		Run(func(args mock.Arguments) { published <- args.Int(2) }).
		Return(nil).Once()

	// Three rapid membership changes queued before the writer runs: the
	// superseded counts must never reach the store.
	h.publishPresence(RoomKey("s1", "main.go"), 1)
	h.publishPresence(RoomKey("s1", "main.go"), 2)
	h.publishPresence(RoomKey("s1", "main.go"), 3)

	go h.presenceLoop()
	defer h.Stop()

	select {
	case count := <-published:
		assert.Equal(t, 3, count)
	case <-time.After(time.Second):
		t.Fatal("presence count was never published")
	}
	state.AssertExpectations(t)
}

func TestClient_EnqueueAfterShutdown(t *testing.T) {
	h, _, _ := newTestHub(t)
	c := newTestClient(h, "s1", "main.go", "alice@example.com")

	require.True(t, c.enqueue(outbound{data: []byte("before")}))

	c.shutdown()
	c.shutdown() // repeat calls stay no-ops

	assert.False(t, c.enqueue(outbound{data: []byte("after")}))
}

func TestRoomKey_RoundTrip(t *testing.T) {
	key := RoomKey("s1", "src/nested/main.go")
	assert.Equal(t, "s1::src/nested/main.go", key)

	sessionID, path := SplitRoomKey(key)
	assert.Equal(t, "s1", sessionID)
	assert.Equal(t, "src/nested/main.go", path)
}
