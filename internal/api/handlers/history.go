package handlers

import (
	"net/http"
	"strconv"

	"github.com/Ayash-Bera/felicity/internal/models"
	"github.com/Ayash-Bera/felicity/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type HistoryHandler struct {
	records models.QueryRecordRepository
	logger  *logrus.Logger
}

// NewHistoryHandler serves recorded searches. records may be nil when no
// database is configured.
func NewHistoryHandler(records models.QueryRecordRepository, logger *logrus.Logger) *HistoryHandler {
	return &HistoryHandler{records: records, logger: logger}
}

// HandleList returns the most recent searches, or those of one session when
// session_id is given.
func (h *HistoryHandler) HandleList(c *gin.Context) {
	if h.records == nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "History is not enabled", nil)
		return
	}

	var (
		records []models.QueryRecord
		err     error
	)
	if sessionID := c.Query("session_id"); sessionID != "" {
		records, err = h.records.GetBySession(sessionID)
	} else {
		limit, parseErr := parseLimit(c.Query("limit"))
		if parseErr != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid limit", parseErr)
			return
		}
		records, err = h.records.GetRecent(limit)
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load history")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to load history", nil)
		return
	}

	if records == nil {
		records = []models.QueryRecord{}
	}
	utils.SuccessResponse(c, http.StatusOK, "History retrieved", records)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if limit <= 0 {
		return defaultHistoryLimit, nil
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit, nil
	}
	return limit, nil
}
