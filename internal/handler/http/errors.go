package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mir-akbar/CodeCollab-sub000/internal/service"
)

// HandleServiceError is the single place the service error taxonomy is
// translated into HTTP status codes.
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrUnknownRole),
		errors.Is(err, service.ErrSelfOperation):
		ErrorResponse(c, http.StatusBadRequest, err.Error())

	case errors.Is(err, service.ErrPermissionDenied):
		ErrorResponse(c, http.StatusForbidden, err.Error())

	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrParticipantNotFound),
		errors.Is(err, service.ErrFileNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())

	case errors.Is(err, service.ErrAlreadyParticipant),
		errors.Is(err, service.ErrSessionExists),
		errors.Is(err, service.ErrSessionFull),
		errors.Is(err, service.ErrSessionArchived),
		errors.Is(err, service.ErrOwnerImmutable),
		errors.Is(err, service.ErrInvalidTransition):
		ErrorResponse(c, http.StatusConflict, err.Error())

	default:
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
