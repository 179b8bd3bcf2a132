package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mir-akbar/CodeCollab-sub000/internal/repository"
	"github.com/mir-akbar/CodeCollab-sub000/internal/service"
)

const (
	// A connection with no inbound frame for this long is terminated by
	// the sweep even if it still answers pings.
	idleTimeout = 30 * time.Minute

	// How often the liveness sweep runs.
	sweepInterval = time.Minute

	// TTL on published presence counts; refreshed on every change.
	presenceTTL = 5 * time.Minute

	// Minimum spacing between activity marks for the same room.
	activityMarkInterval = 30 * time.Second

	frameQueueSize = 512
)

var _ service.RoomHub = (*Hub)(nil)

// frame is one inbound message waiting to be relayed.
type frame struct {
	client *Client
	binary bool
	data   []byte
}

// presenceNotice is the control event sent to a room when membership
// changes.
type presenceNotice struct {
	Type     string `json:"type"` // "user-joined" or "user-left"
	Identity string `json:"identity"`
	Path     string `json:"path"`
	Members  int    `json:"members"`
}

// saveEnvelope is the only inbound control frame the hub looks inside:
// a client asking for its reconciled content to be persisted. Everything
// else, binary or text, passes through verbatim.
type saveEnvelope struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Hub owns the room index and every live connection's membership. Rooms
// are created lazily on first join and destroyed when their membership
// becomes empty; at most one live connection exists per identity per
// room. All shared state is behind the Hub's own lock so tests can run
// isolated instances.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*room
	// lastMark throttles per-room activity marks.
	lastMark map[string]time.Time

	frames chan frame
	quit   chan struct{}

	// presencePending holds the latest member count per room awaiting
	// publication; a single writer drains it so counts land in order.
	presenceMu      sync.Mutex
	presencePending map[string]int
	presenceKick    chan struct{}

	syncService *service.SyncService
	state       repository.StateRepository
}

// NewHub creates a Hub.
func NewHub(syncService *service.SyncService, state repository.StateRepository) *Hub {
	if syncService == nil {
		panic("SyncService cannot be nil for Hub")
	}
	if state == nil {
		panic("StateRepository cannot be nil for Hub")
	}
	return &Hub{
		rooms:           make(map[string]*room),
		lastMark:        make(map[string]time.Time),
		frames:          make(chan frame, frameQueueSize),
		quit:            make(chan struct{}),
		presencePending: make(map[string]int),
		presenceKick:    make(chan struct{}, 1),
		syncService:     syncService,
		state:           state,
	}
}

// Run drives the relay loop and the liveness sweep. It should run in its
// own goroutine and exits when Stop is called.
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running")

	go h.presenceLoop()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case f := <-h.frames:
			h.relay(f)
		case <-ticker.C:
			h.sweep()
		case <-h.quit:
			log.Info("Hub is shutting down")
			return
		}
	}
}

// Stop terminates the relay loop and force-closes every connection.
func (h *Hub) Stop() {
	close(h.quit)

	h.mu.Lock()
	var victims []*Client
	for _, r := range h.rooms {
		for c := range r.clients {
			victims = append(victims, c)
		}
	}
	h.rooms = make(map[string]*room)
	h.mu.Unlock()

	for _, c := range victims {
		c.shutdown()
	}
}

// queueFrame hands an inbound frame to the relay loop without blocking.
func (h *Hub) queueFrame(f frame) bool {
	select {
	case h.frames <- f:
		return true
	default:
		return false
	}
}

// JoinRoom registers the connection with its room, creating the room on
// first join. If a live connection already exists for the same identity in
// the same room it is force-terminated first. The returned count reflects
// the membership after the join.
func (h *Hub) JoinRoom(c *Client) int {
	h.mu.Lock()
	r, ok := h.rooms[c.RoomKey()]
	if !ok {
		r = newRoom(c.sessionID, c.path)
		h.rooms[r.key] = r
	}
	var displaced *Client
	if prev := r.byIdentity[c.identity]; prev != nil && prev != c {
		r.remove(prev)
		displaced = prev
	}
	r.add(c)
	count := len(r.clients)
	h.mu.Unlock()

	logCtx := logrus.WithFields(logrus.Fields{
		"room":     r.key,
		"identity": c.identity,
		"members":  count,
	})
	if displaced != nil {
		displaced.shutdown()
		logCtx.Info("Displaced previous connection for identity")
	}
	logCtx.Info("Client joined room")

	h.notifyPresence(r.key, "user-joined", c.identity, count, c)
	h.publishPresence(r.key, count)
	go h.sendInitialSnapshot(c)

	return count
}

// Leave removes the connection from its room, notifies the remaining
// members, and destroys the room if it became empty. Calling it for a
// connection that was already removed is a no-op.
func (h *Hub) Leave(c *Client) {
	key := c.RoomKey()

	h.mu.Lock()
	r, ok := h.rooms[key]
	if !ok || !r.clients[c] {
		h.mu.Unlock()
		c.shutdown() // idempotent
		return
	}
	r.remove(c)
	count := len(r.clients)
	if r.empty() {
		delete(h.rooms, key)
		delete(h.lastMark, key)
	}
	h.mu.Unlock()

	c.shutdown()
	logrus.WithFields(logrus.Fields{
		"room":     key,
		"identity": c.identity,
		"members":  count,
	}).Info("Client left room")

	if count > 0 {
		h.notifyPresence(key, "user-left", c.identity, count, nil)
	}
	h.publishPresence(key, count)
	go h.markActivity(c.sessionID, key)
}

// EnsureRoom creates the room if it does not exist yet, so collaborators
// outside the transport (e.g. an upload handler) can announce a resource
// before any editor joins. An ensured room that stays empty is reclaimed
// by the sweep.
func (h *Hub) EnsureRoom(sessionID, path string) {
	h.mu.Lock()
	key := RoomKey(sessionID, path)
	if _, ok := h.rooms[key]; !ok {
		h.rooms[key] = newRoom(sessionID, path)
	}
	h.mu.Unlock()
}

// HasRoom reports whether the room currently exists.
func (h *Hub) HasRoom(sessionID, path string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[RoomKey(sessionID, path)]
	return ok
}

// RoomMembers returns the identities currently connected to the room.
func (h *Hub) RoomMembers(sessionID, path string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[RoomKey(sessionID, path)]
	if !ok {
		return nil
	}
	return r.members()
}

// Broadcast implements service.RoomHub: room-wide fan-out of a control
// event with no sender to exclude.
func (h *Hub) Broadcast(sessionID, path string, message []byte) {
	h.broadcast(RoomKey(sessionID, path), outbound{data: message}, nil)
}

// BroadcastToRoom fans a message out to every live member of the room
// except sender. Delivery is best-effort per connection: a member whose
// queue is full is evicted without aborting delivery to the rest.
func (h *Hub) BroadcastToRoom(roomKey string, message []byte, sender *Client) {
	h.broadcast(roomKey, outbound{data: message}, sender)
}

// SendToIdentity unicasts a message to one identity within a room, for
// directed reply flows. Returns false when the identity has no live
// connection there.
func (h *Hub) SendToIdentity(sessionID, path, identity string, message []byte) bool {
	h.mu.RLock()
	r, ok := h.rooms[RoomKey(sessionID, path)]
	var target *Client
	if ok {
		target = r.byIdentity[identity]
	}
	h.mu.RUnlock()

	if target == nil {
		return false
	}
	if !target.enqueue(outbound{data: message}) {
		h.evict(target, "send queue full")
		return false
	}
	return true
}

func (h *Hub) broadcast(roomKey string, msg outbound, sender *Client) {
	h.mu.RLock()
	r, ok := h.rooms[roomKey]
	var recipients []*Client
	if ok {
		recipients = make([]*Client, 0, len(r.clients))
		for c := range r.clients {
			if c != sender {
				recipients = append(recipients, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range recipients {
		if !c.enqueue(msg) {
			// Slow or dead peer: isolate it, keep serving the room.
			h.evict(c, "send queue full during broadcast")
		}
	}
}

// relay forwards one inbound frame verbatim to the sender's room mates.
// The only frame it looks inside is the "save" control event, which also
// persists the reconciled content through the sync bridge.
func (h *Hub) relay(f frame) {
	c := f.client
	h.broadcast(c.RoomKey(), outbound{binary: f.binary, data: f.data}, c)

	if !f.binary {
		var envelope saveEnvelope
		if err := json.Unmarshal(f.data, &envelope); err == nil && envelope.Type == "save" {
			go h.persistSave(c, envelope.Content)
		}
	}
	go h.markActivity(c.sessionID, c.RoomKey())
}

func (h *Hub) persistSave(c *Client, content string) {
	_, err := h.syncService.PersistSnapshot(context.Background(), c.sessionID, c.path, []byte(content), c.identity)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room":     c.RoomKey(),
			"identity": c.identity,
		}).Error("Failed to persist save frame")
	}
}

// sendInitialSnapshot loads the latest persisted content and delivers it
// to a freshly joined client as a snapshot control frame.
func (h *Hub) sendInitialSnapshot(c *Client) {
	content, err := h.syncService.LoadInitialSnapshot(context.Background(), c.sessionID, c.path)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room":     c.RoomKey(),
			"identity": c.identity,
		}).Error("Failed to load initial snapshot")
		errMsg, _ := json.Marshal(map[string]string{"type": "error", "message": "failed to load file content"})
		c.enqueue(outbound{data: errMsg})
		return
	}

	msg, err := json.Marshal(map[string]interface{}{
		"type":    "snapshot",
		"path":    c.path,
		"content": string(content),
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal snapshot frame")
		return
	}
	if !c.enqueue(outbound{data: msg}) {
		logrus.WithFields(logrus.Fields{
			"room":     c.RoomKey(),
			"identity": c.identity,
		}).Warn("Client queue full for initial snapshot")
	}
}

// sweep terminates idle connections and reclaims empty rooms left behind
// by EnsureRoom. Runs on the Hub loop.
func (h *Hub) sweep() {
	cutoff := time.Now().Add(-idleTimeout)

	h.mu.Lock()
	var stale []*Client
	for key, r := range h.rooms {
		for c := range r.clients {
			if c.idleSince().Before(cutoff) {
				stale = append(stale, c)
			}
		}
		if r.empty() {
			delete(h.rooms, key)
			delete(h.lastMark, key)
		}
	}
	h.mu.Unlock()

	for _, c := range stale {
		h.evict(c, "idle timeout")
	}
}

// evict force-terminates a connection and runs its room cleanup. Safe to
// call for an already-removed connection.
func (h *Hub) evict(c *Client, reason string) {
	logrus.WithFields(logrus.Fields{
		"room":     c.RoomKey(),
		"identity": c.identity,
		"reason":   reason,
	}).Info("Evicting connection")
	c.shutdown()
	h.Leave(c)
}

func (h *Hub) notifyPresence(roomKey, event, identity string, members int, exclude *Client) {
	_, path := SplitRoomKey(roomKey)
	msg, err := json.Marshal(presenceNotice{
		Type:     event,
		Identity: identity,
		Path:     path,
		Members:  members,
	})
	if err != nil {
		logrus.WithError(err).Warn("Failed to marshal presence notice")
		return
	}
	h.broadcast(roomKey, outbound{data: msg}, exclude)
}

// publishPresence records the room's live member count for the presence
// loop. Counts for the same room are coalesced: only the newest value is
// written out, so a burst of membership changes cannot leave a stale
// count in the state store.
func (h *Hub) publishPresence(roomKey string, count int) {
	h.presenceMu.Lock()
	h.presencePending[roomKey] = count
	h.presenceMu.Unlock()

	select {
	case h.presenceKick <- struct{}{}:
	default:
	}
}

// presenceLoop is the single writer draining pending member counts into
// the state store, so the HTTP layer can report presence without touching
// the hub. Runs alongside the relay loop and exits with it.
func (h *Hub) presenceLoop() {
	for {
		select {
		case <-h.presenceKick:
		case <-h.quit:
			return
		}

		h.presenceMu.Lock()
		batch := h.presencePending
		h.presencePending = make(map[string]int)
		h.presenceMu.Unlock()

		for roomKey, count := range batch {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := h.state.SetRoomPresence(ctx, roomKey, count, presenceTTL)
			cancel()
			if err != nil {
				logrus.WithError(err).WithField("room", roomKey).Warn("Failed to publish room presence")
			}
		}
	}
}

// markActivity records session activity at most once per
// activityMarkInterval per room.
func (h *Hub) markActivity(sessionID, roomKey string) {
	now := time.Now()

	h.mu.Lock()
	if last, ok := h.lastMark[roomKey]; ok && now.Sub(last) < activityMarkInterval {
		h.mu.Unlock()
		return
	}
	// Only track the throttle for live rooms so the map cannot grow with
	// keys of rooms that are already gone.
	if _, ok := h.rooms[roomKey]; ok {
		h.lastMark[roomKey] = now
	}
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.state.MarkActivity(ctx, sessionID, now); err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Warn("Failed to mark session activity")
	}
}
