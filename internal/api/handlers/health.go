package handlers

import (
	"net/http"

	"github.com/Ayash-Bera/felicity/internal/health"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	checker *health.Checker
}

func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// HandleHealth answers with the last known health. ?fresh=true checks now.
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	var result health.OverallHealth
	if c.Query("fresh") == "true" {
		result = h.checker.CheckAll(c.Request.Context())
	} else {
		result = h.checker.Latest(c.Request.Context())
	}

	status := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}

// HandleLive reports only that the process serves requests.
func (h *HealthHandler) HandleLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
