package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mir-akbar/CodeCollab-sub000/internal/domain"
	"github.com/mir-akbar/CodeCollab-sub000/internal/middleware"
	"github.com/mir-akbar/CodeCollab-sub000/internal/service"
)

// FileHandler exposes persisted file snapshots over HTTP. Access control
// is delegated to the directory's CheckAccess probe; content itself goes
// through the sync bridge.
type FileHandler struct {
	directory *service.SessionDirectory
	sync      *service.SyncService
}

// NewFileHandler creates a FileHandler.
func NewFileHandler(directory *service.SessionDirectory, syncService *service.SyncService) *FileHandler {
	if directory == nil {
		panic("SessionDirectory cannot be nil for FileHandler")
	}
	if syncService == nil {
		panic("SyncService cannot be nil for FileHandler")
	}
	return &FileHandler{directory: directory, sync: syncService}
}

// filePath normalizes the wildcard path parameter.
func filePath(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("filePath"), "/")
}

func (h *FileHandler) requireAccess(c *gin.Context, required domain.Role) (identity string, ok bool) {
	identity, ok = middleware.Identity(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return "", false
	}
	access := h.directory.CheckAccess(c.Request.Context(), c.Param("sessionId"), identity, required)
	if !access.Allowed {
		if access.Reason == "session not found" {
			ErrorResponse(c, http.StatusNotFound, access.Reason)
		} else {
			ErrorResponse(c, http.StatusForbidden, access.Reason)
		}
		return "", false
	}
	return identity, true
}

// ListFiles handles GET /api/sessions/:sessionId/files.
func (h *FileHandler) ListFiles(c *gin.Context) {
	if _, ok := h.requireAccess(c, domain.RoleViewer); !ok {
		return
	}
	files, err := h.sync.ListFiles(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"files": files})
}

// GetFile handles GET /api/sessions/:sessionId/files/*filePath. A file
// that was never persisted comes back as empty content, matching what a
// joining editor would see.
func (h *FileHandler) GetFile(c *gin.Context) {
	if _, ok := h.requireAccess(c, domain.RoleViewer); !ok {
		return
	}
	content, err := h.sync.LoadInitialSnapshot(c.Request.Context(), c.Param("sessionId"), filePath(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"path": filePath(c), "content": string(content)})
}

type putFileRequest struct {
	Content string `json:"content"`
}

// PutFile handles PUT /api/sessions/:sessionId/files/*filePath. The body
// carries a client-reconciled snapshot; no merging happens here. A newly
// created file gets a room and a file-added notice so connected sidebars
// update.
func (h *FileHandler) PutFile(c *gin.Context) {
	identity, ok := h.requireAccess(c, domain.RoleEditor)
	if !ok {
		return
	}
	var req putFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	sessionID, path := c.Param("sessionId"), filePath(c)
	created := !h.sync.FileExists(c.Request.Context(), sessionID, path)

	snapshot, err := h.sync.PersistSnapshot(c.Request.Context(), sessionID, path, []byte(req.Content), identity)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	if created {
		h.sync.EnsureRoom(sessionID, path)
		h.sync.NotifyRoom(sessionID, path, service.FileNotice{Type: "file-added", Path: path, Identity: identity})
	}
	SuccessResponse(c, http.StatusOK, gin.H{
		"path":     snapshot.Path,
		"size":     snapshot.Size,
		"modified": snapshot.UpdatedAt,
	})
}

// DeleteFile handles DELETE /api/sessions/:sessionId/files/*filePath.
func (h *FileHandler) DeleteFile(c *gin.Context) {
	identity, ok := h.requireAccess(c, domain.RoleEditor)
	if !ok {
		return
	}
	if err := h.sync.DeleteFile(c.Request.Context(), c.Param("sessionId"), filePath(c), identity); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"deleted": filePath(c)})
}
