package hub

import "strings"

// roomKeySeparator joins session id and resource path into a room key.
// Session ids are UUID-like and never contain "::".
const roomKeySeparator = "::"

// RoomKey derives the deterministic room identity for a resource within a
// session.
func RoomKey(sessionID, path string) string {
	return sessionID + roomKeySeparator + path
}

// SplitRoomKey is the inverse of RoomKey.
func SplitRoomKey(key string) (sessionID, path string) {
	parts := strings.SplitN(key, roomKeySeparator, 2)
	if len(parts) != 2 {
		return key, ""
	}
	return parts[0], parts[1]
}

// room holds the live connections collaborating on one resource. It is
// created lazily on first join and removed once its membership is empty.
// All access goes through the Hub's lock; room has no locking of its own.
type room struct {
	sessionID string
	path      string
	key       string

	clients    map[*Client]bool
	byIdentity map[string]*Client
}

func newRoom(sessionID, path string) *room {
	return &room{
		sessionID:  sessionID,
		path:       path,
		key:        RoomKey(sessionID, path),
		clients:    make(map[*Client]bool),
		byIdentity: make(map[string]*Client),
	}
}

func (r *room) add(c *Client) {
	r.clients[c] = true
	r.byIdentity[c.identity] = c
}

// remove drops c from the room. The identity index is only cleared when it
// still points at c, so replacing a connection for the same identity does
// not clobber the replacement.
func (r *room) remove(c *Client) {
	delete(r.clients, c)
	if r.byIdentity[c.identity] == c {
		delete(r.byIdentity, c.identity)
	}
}

func (r *room) empty() bool {
	return len(r.clients) == 0
}

func (r *room) members() []string {
	members := make([]string, 0, len(r.byIdentity))
	for identity := range r.byIdentity {
		members = append(members, identity)
	}
	return members
}
