package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Ayash-Bera/felicity/internal/felicity"
	"github.com/Ayash-Bera/felicity/internal/models"
	"github.com/Ayash-Bera/felicity/internal/services"
	"github.com/Ayash-Bera/felicity/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	maxQueryLength    = 2000
	keepAliveInterval = 15 * time.Second
)

type SessionHandler struct {
	sessions *services.SessionService
	logger   *logrus.Logger
}

func NewSessionHandler(sessions *services.SessionService, logger *logrus.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// HandleCreate opens a query session. The body is optional.
func (h *SessionHandler) HandleCreate(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	id := h.sessions.Create(felicity.QueryContext{UserID: req.UserID, Annotations: req.Annotations})
	utils.SuccessResponse(c, http.StatusCreated, "Session created", models.CreateSessionResponse{SessionID: id})
}

// HandleSearch starts a search and answers with the pending state.
func (h *SessionHandler) HandleSearch(c *gin.Context) {
	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if len(req.Query) > maxQueryLength {
		utils.ErrorResponse(c, http.StatusBadRequest, "Query too long (max 2000 characters)", nil)
		return
	}

	var qctx *felicity.QueryContext
	if req.Context != nil {
		qctx = &felicity.QueryContext{UserID: req.Context.UserID, Annotations: req.Context.Annotations}
	}

	id := c.Param("id")
	state, err := h.sessions.Search(id, req.Query, qctx)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"session_id": id,
		"request_id": c.GetString("request_id"),
	}).Debug("Search started")

	utils.SuccessResponse(c, http.StatusAccepted, "Search started", models.NewSessionView(id, state))
}

func (h *SessionHandler) HandleGet(c *gin.Context) {
	id := c.Param("id")
	state, err := h.sessions.State(id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Session state", models.NewSessionView(id, state))
}

// HandleEvents streams every state transition as a server-sent "state"
// event until the client disconnects or the session closes.
func (h *SessionHandler) HandleEvents(c *gin.Context) {
	id := c.Param("id")
	states, cancel, err := h.sessions.Subscribe(id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-keepAlive.C:
			_, _ = c.Writer.WriteString(": keep-alive\n\n")
			c.Writer.Flush()
		case st, ok := <-states:
			if !ok {
				c.SSEvent("closed", gin.H{"session_id": id})
				c.Writer.Flush()
				return
			}
			c.SSEvent("state", models.NewSessionView(id, st))
			c.Writer.Flush()
		}
	}
}

func (h *SessionHandler) HandleDelete(c *gin.Context) {
	if err := h.sessions.Close(c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
