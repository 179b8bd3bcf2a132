package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Document updates can carry
	// whole-file state, so this is generous.
	maxMessageSize = 1 << 20

	// Size of the per-connection outbound queue.
	sendQueueSize = 256
)

// outbound is one queued message together with its wire type. Binary
// frames carry opaque document updates; text frames carry structured
// control events. Both are relayed verbatim.
type outbound struct {
	binary bool
	data   []byte
}

// Client is one live WebSocket connection inside a room. The transport
// layer owns it exclusively; the room only holds a non-owning membership
// reference that is released on disconnect or staleness.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID string
	path      string
	identity  string

	// send is the per-connection outbound queue drained by WritePump.
	send chan outbound

	// lastActive is the unix-nano timestamp of the last inbound frame,
	// read by the idle sweep.
	lastActive atomic.Int64

	// sendMu guards closed and the close of send, so enqueue can never
	// write to a closed channel.
	sendMu sync.Mutex
	closed bool
}

// NewClient creates a Client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, sessionID, path, identity string) *Client {
	c := &Client{
		hub:       hub,
		conn:      conn,
		sessionID: sessionID,
		path:      path,
		identity:  identity,
		send:      make(chan outbound, sendQueueSize),
	}
	c.touch()
	return c
}

// Run starts the read and write pumps.
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// Identity returns the verified opaque identity behind the connection.
func (c *Client) Identity() string { return c.identity }

// RoomKey returns the key of the room this connection belongs to.
func (c *Client) RoomKey() string { return RoomKey(c.sessionID, c.path) }

func (c *Client) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}

func (c *Client) idleSince() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

// shutdown closes the outbound queue exactly once, which makes WritePump
// exit and close the underlying connection. Safe to call from any
// goroutine any number of times.
func (c *Client) shutdown() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	// Without a running WritePump nobody would close the socket.
	if c.conn != nil {
		_ = c.conn.SetReadDeadline(time.Now())
	}
}

// enqueue places a message on the outbound queue without blocking.
// Returns false when the queue is full or already closed; the caller
// decides whether that warrants eviction.
func (c *Client) enqueue(msg outbound) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// ReadPump relays frames from the WebSocket into the Hub until the
// connection dies, then unregisters the client. Runs in its own goroutine.
func (c *Client) ReadPump() {
	logCtx := logrus.WithFields(logrus.Fields{
		"session_id": c.sessionID,
		"path":       c.path,
		"identity":   c.identity,
	})
	defer func() {
		c.hub.Leave(c)
		c.conn.Close()
		logCtx.Debug("ReadPump exited")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error")
			}
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		c.touch()

		if !c.hub.queueFrame(frame{
			client: c,
			binary: messageType == websocket.BinaryMessage,
			data:   message,
		}) {
			logCtx.Warn("Hub frame queue full, dropping client message")
		}
	}
}

// WritePump drains the outbound queue into the WebSocket and keeps the
// connection alive with pings. Runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Queue closed by shutdown: say goodbye and stop.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			messageType := websocket.TextMessage
			if msg.binary {
				messageType = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(messageType, msg.data); err != nil {
				logrus.WithFields(logrus.Fields{
					"identity": c.identity,
					"room":     c.RoomKey(),
				}).WithError(err).Warn("Failed to write message to websocket")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
