package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/mir-akbar/CodeCollab-sub000/internal/domain"
	"github.com/mir-akbar/CodeCollab-sub000/internal/middleware"
	"github.com/mir-akbar/CodeCollab-sub000/internal/repository"
	"github.com/mir-akbar/CodeCollab-sub000/internal/service"
)

var validate = validator.New()

// SessionHandler exposes the session/participant API. It is a thin
// boundary: all rules live in the SessionDirectory.
type SessionHandler struct {
	directory *service.SessionDirectory
	state     repository.StateRepository
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(directory *service.SessionDirectory, state repository.StateRepository) *SessionHandler {
	if directory == nil {
		panic("SessionDirectory cannot be nil for SessionHandler")
	}
	if state == nil {
		panic("StateRepository cannot be nil for SessionHandler")
	}
	return &SessionHandler{directory: directory, state: state}
}

type createSessionRequest struct {
	ID              string `json:"id" validate:"omitempty,max=64"`
	Name            string `json:"name" validate:"required,max=255"`
	Description     string `json:"description" validate:"max=1024"`
	MaxParticipants int    `json:"max_participants" validate:"omitempty,min=1,max=100"`
	AllowedDomain   string `json:"allowed_domain" validate:"omitempty,fqdn"`
}

// CreateSession handles POST /api/sessions.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.directory.CreateSession(c.Request.Context(), service.CreateSessionInput{
		ID:              req.ID,
		Name:            req.Name,
		Description:     req.Description,
		Creator:         identity,
		MaxParticipants: req.MaxParticipants,
		AllowedDomain:   req.AllowedDomain,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, session)
}

// ListSessions handles GET /api/sessions.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	sessions, err := h.directory.ListSessions(c.Request.Context(), identity)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"sessions": sessions})
}

// GetSession handles GET /api/sessions/:sessionId. The response includes
// the live editor presence for the whole session.
func (h *SessionHandler) GetSession(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	sessionID := c.Param("sessionId")

	session, err := h.directory.GetSession(c.Request.Context(), sessionID, identity)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	presence, err := h.state.SessionPresence(c.Request.Context(), sessionID)
	if err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Warn("Failed to read session presence")
		presence = 0
	}
	SuccessResponse(c, http.StatusOK, gin.H{"session": session, "online": presence})
}

// ListParticipants handles GET /api/sessions/:sessionId/participants.
func (h *SessionHandler) ListParticipants(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	participants, err := h.directory.ListParticipants(c.Request.Context(), c.Param("sessionId"), identity)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"participants": participants})
}

type inviteRequest struct {
	Identity string `json:"identity" validate:"required,max=255"`
	Role     string `json:"role" validate:"required,oneof=viewer editor admin"`
}

// Invite handles POST /api/sessions/:sessionId/participants.
func (h *SessionHandler) Invite(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	participant, err := h.directory.Invite(c.Request.Context(), c.Param("sessionId"), identity, req.Identity, domain.Role(req.Role))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, participant)
}

// AcceptInvite handles POST /api/sessions/:sessionId/participants/accept.
func (h *SessionHandler) AcceptInvite(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	participant, err := h.directory.AcceptInvite(c.Request.Context(), c.Param("sessionId"), identity)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, participant)
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=viewer editor admin"`
}

// UpdateRole handles PATCH /api/sessions/:sessionId/participants/:identity.
func (h *SessionHandler) UpdateRole(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	participant, err := h.directory.UpdateParticipantRole(
		c.Request.Context(), c.Param("sessionId"), identity, c.Param("identity"), domain.Role(req.Role))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, participant)
}

// RemoveParticipant handles DELETE /api/sessions/:sessionId/participants/:identity.
func (h *SessionHandler) RemoveParticipant(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	err := h.directory.RemoveParticipant(c.Request.Context(), c.Param("sessionId"), identity, c.Param("identity"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"removed": c.Param("identity")})
}

// Leave handles POST /api/sessions/:sessionId/leave.
func (h *SessionHandler) Leave(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	if err := h.directory.LeaveSession(c.Request.Context(), c.Param("sessionId"), identity); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"left": c.Param("sessionId")})
}

type transferRequest struct {
	Identity string `json:"identity" validate:"required,max=255"`
}

// TransferOwnership handles POST /api/sessions/:sessionId/transfer.
func (h *SessionHandler) TransferOwnership(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.directory.TransferOwnership(c.Request.Context(), c.Param("sessionId"), identity, req.Identity); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"owner": req.Identity})
}

// Archive handles POST /api/sessions/:sessionId/archive.
func (h *SessionHandler) Archive(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	if err := h.directory.ArchiveSession(c.Request.Context(), c.Param("sessionId"), identity); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"archived": c.Param("sessionId")})
}

// CheckAccess handles GET /api/sessions/:sessionId/access. The probe never
// fails; denials come back as a structured body with 200.
func (h *SessionHandler) CheckAccess(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	requiredRole := domain.Role(c.DefaultQuery("role", string(domain.RoleViewer)))
	result := h.directory.CheckAccess(c.Request.Context(), c.Param("sessionId"), identity, requiredRole)
	SuccessResponse(c, http.StatusOK, result)
}
