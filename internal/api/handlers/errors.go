package handlers

import (
	"errors"
	"net/http"

	"github.com/Ayash-Bera/felicity/internal/feedback"
	"github.com/Ayash-Bera/felicity/internal/felicity"
	"github.com/Ayash-Bera/felicity/internal/services"
	"github.com/Ayash-Bera/felicity/internal/session"
	"github.com/Ayash-Bera/felicity/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// writeError maps domain errors onto HTTP statuses.
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	var (
		invalid   *feedback.InvalidStateError
		transport *felicity.TransportError
		service   *felicity.ServiceError
	)

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "Session not found", err)
	case errors.Is(err, session.ErrEmptyQuery):
		utils.ErrorResponse(c, http.StatusBadRequest, "Query cannot be empty", err)
	case errors.Is(err, session.ErrSessionClosed):
		utils.ErrorResponse(c, http.StatusGone, "Session is closed", err)
	case errors.Is(err, feedback.ErrNoAnswerID):
		utils.ErrorResponse(c, http.StatusBadRequest, "Answer feedback id is required", err)
	case errors.As(err, &invalid):
		utils.ErrorResponse(c, http.StatusConflict, "Feedback not allowed in stage "+invalid.Stage.String(), err)
	case errors.As(err, &transport), errors.As(err, &service):
		logger.WithError(err).Warn("Answering service call failed")
		utils.ErrorResponse(c, http.StatusBadGateway, "Answering service call failed", err)
	default:
		logger.WithError(err).Error("Unhandled request error")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal error", nil)
	}
	_ = c.Error(err)
}
