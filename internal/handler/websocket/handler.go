package websocket

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/mir-akbar/CodeCollab-sub000/internal/domain"
	"github.com/mir-akbar/CodeCollab-sub000/internal/hub"
	"github.com/mir-akbar/CodeCollab-sub000/internal/middleware"
	"github.com/mir-akbar/CodeCollab-sub000/internal/service"
)

// WebSocketHandler upgrades editor connections and registers them with
// the hub. Access is checked against the session directory before the
// upgrade, while we can still answer with an HTTP status.
type WebSocketHandler struct {
	upgrader  websocket.Upgrader
	hub       *hub.Hub
	directory *service.SessionDirectory
}

// NewWebSocketHandler creates a WebSocketHandler.
func NewWebSocketHandler(h *hub.Hub, directory *service.SessionDirectory) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if directory == nil {
		panic("SessionDirectory cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// TODO: restrict origins once the frontend origin is configurable.
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return &WebSocketHandler{
		upgrader:  upgrader,
		hub:       h,
		directory: directory,
	}
}

// HandleConnection handles GET /ws/session/:sessionId/*filePath.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sessionID := c.Param("sessionId")
	path := strings.TrimPrefix(c.Param("filePath"), "/")
	if sessionID == "" || path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session id and file path are required"})
		return
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"path":       path,
		"identity":   identity,
	})

	access := h.directory.CheckAccess(c.Request.Context(), sessionID, identity, domain.RoleViewer)
	if !access.Allowed {
		logCtx.WithField("reason", access.Reason).Warn("WS Handler: Access denied")
		status := http.StatusForbidden
		if access.Reason == "session not found" {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": access.Reason})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, sessionID, path, identity)
	members := h.hub.JoinRoom(client)
	client.Run()

	logCtx.WithField("members", members).Info("WS Handler: Client connected")
}
