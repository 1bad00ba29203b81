// Package api assembles the HTTP surface that hosts query and feedback
// sessions for remote front ends.
package api

import (
	"github.com/Ayash-Bera/felicity/internal/api/handlers"
	"github.com/Ayash-Bera/felicity/internal/health"
	"github.com/Ayash-Bera/felicity/internal/middleware"
	"github.com/Ayash-Bera/felicity/internal/models"
	"github.com/Ayash-Bera/felicity/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Dependencies are the services the router exposes. History and
// RateLimiter may be nil.
type Dependencies struct {
	Sessions    *services.SessionService
	Feedback    *services.FeedbackService
	History     models.QueryRecordRepository
	Health      *health.Checker
	Gatherer    prometheus.Gatherer
	RateLimiter *middleware.RateLimiter
	Logger      *logrus.Logger
}

func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())

	healthHandler := handlers.NewHealthHandler(deps.Health)
	router.GET("/health", healthHandler.HandleHealth)
	router.GET("/health/live", healthHandler.HandleLive)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	if deps.RateLimiter != nil {
		v1.Use(deps.RateLimiter.RateLimit())
	}

	sessionHandler := handlers.NewSessionHandler(deps.Sessions, deps.Logger)
	sessions := v1.Group("/sessions")
	{
		sessions.POST("", sessionHandler.HandleCreate)
		sessions.GET("/:id", sessionHandler.HandleGet)
		sessions.DELETE("/:id", sessionHandler.HandleDelete)
		sessions.POST("/:id/search", sessionHandler.HandleSearch)
		sessions.GET("/:id/events", sessionHandler.HandleEvents)
	}

	feedbackHandler := handlers.NewFeedbackHandler(deps.Feedback, deps.Logger)
	fb := v1.Group("/feedback/:answerId")
	{
		fb.GET("", feedbackHandler.HandleGet)
		fb.POST("/vote", feedbackHandler.HandleVote)
		fb.POST("/comment", feedbackHandler.HandleComment)
		fb.POST("/skip", feedbackHandler.HandleSkip)
	}

	historyHandler := handlers.NewHistoryHandler(deps.History, deps.Logger)
	v1.GET("/history", historyHandler.HandleList)

	return router
}
