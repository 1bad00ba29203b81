package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/Ayash-Bera/felicity/internal/feedback"
	"github.com/Ayash-Bera/felicity/internal/models"
	"github.com/Ayash-Bera/felicity/internal/services"
	"github.com/Ayash-Bera/felicity/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type FeedbackHandler struct {
	feedback *services.FeedbackService
	logger   *logrus.Logger
}

func NewFeedbackHandler(fb *services.FeedbackService, logger *logrus.Logger) *FeedbackHandler {
	return &FeedbackHandler{feedback: fb, logger: logger}
}

func (h *FeedbackHandler) HandleGet(c *gin.Context) {
	id := c.Param("answerId")
	stage, err := h.feedback.Stage(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Feedback stage", view(id, stage))
}

func (h *FeedbackHandler) HandleVote(c *gin.Context) {
	var req models.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid vote format", err)
		return
	}

	id := c.Param("answerId")
	stage, err := h.feedback.Vote(c.Request.Context(), id, *req.IsCorrect)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Vote recorded", view(id, stage))
}

// HandleComment accepts an empty body, which finishes like a skip.
func (h *FeedbackHandler) HandleComment(c *gin.Context) {
	var req models.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid comment format", err)
		return
	}

	id := c.Param("answerId")
	stage, err := h.feedback.Comment(c.Request.Context(), id, req.Comment)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Comment recorded", view(id, stage))
}

func (h *FeedbackHandler) HandleSkip(c *gin.Context) {
	id := c.Param("answerId")
	stage, err := h.feedback.Skip(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Feedback finished", view(id, stage))
}

func view(id string, stage feedback.Stage) models.FeedbackView {
	return models.FeedbackView{AnswerFeedbackID: id, Stage: stage.String()}
}
