// Package felicitytest provides an in-process fake of the hosted Felicity
// service, speaking the same wire protocol as the real one.
package felicitytest

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Ayash-Bera/felicity/internal/felicity"
	"github.com/gin-gonic/gin"
)

// Script describes how the fake answers one query.
type Script struct {
	Progress []string
	Response *felicity.SearchResponse
	// Status, when non-zero and not 2xx, fails the request with that status.
	Status int
	// ErrorMessage ends the event stream with an error event.
	ErrorMessage string
	// Delay is applied before the terminal event.
	Delay time.Duration
	// JSON answers with a plain application/json body instead of a stream.
	JSON bool
}

// ReceivedFeedback is one feedback call accepted by the fake.
type ReceivedFeedback struct {
	AnswerFeedbackID string
	Payload          felicity.FeedbackPayload
}

type Server struct {
	apiKey string
	engine *gin.Engine

	mu             sync.Mutex
	scripts        map[string]Script
	fallback       Script
	searches       []felicity.SearchRequest
	feedback       []ReceivedFeedback
	feedbackStatus int
}

// NewServer returns a fake that only accepts requests bearing apiKey.
func NewServer(apiKey string) *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		apiKey:  apiKey,
		scripts: make(map[string]Script),
		fallback: Script{
			Response: &felicity.SearchResponse{Success: felicity.Bool(true), TriageType: felicity.TriageData},
		},
	}

	engine := gin.New()
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := engine.Group("/", s.authenticate)
	authed.POST("/search", s.handleSearch)
	authed.POST("/feedback/:answerId", s.handleFeedback)

	s.engine = engine
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// On registers the script used for an exact query text.
func (s *Server) On(query string, script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[query] = script
}

// Default sets the script used for queries without a registered one.
func (s *Server) Default(script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = script
}

// FailFeedback makes every following feedback call answer with status.
// Zero restores normal behavior.
func (s *Server) FailFeedback(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedbackStatus = status
}

func (s *Server) Searches() []felicity.SearchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]felicity.SearchRequest(nil), s.searches...)
}

func (s *Server) Feedback() []ReceivedFeedback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ReceivedFeedback(nil), s.feedback...)
}

func (s *Server) authenticate(c *gin.Context) {
	if c.GetHeader("Authorization") != "Bearer "+s.apiKey {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid api key"})
		return
	}
	c.Next()
}

func (s *Server) handleSearch(c *gin.Context) {
	var req felicity.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	s.searches = append(s.searches, req)
	script, ok := s.scripts[req.Query]
	if !ok {
		script = s.fallback
	}
	s.mu.Unlock()

	if script.Status != 0 && (script.Status < 200 || script.Status >= 300) {
		c.JSON(script.Status, gin.H{"message": "scripted failure"})
		return
	}

	if script.JSON || !strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		if !wait(c, script.Delay) {
			return
		}
		c.JSON(http.StatusOK, script.Response)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	for _, label := range script.Progress {
		c.SSEvent("progress", gin.H{"label": label})
		c.Writer.Flush()
	}
	if !wait(c, script.Delay) {
		return
	}
	if script.ErrorMessage != "" {
		c.SSEvent("error", gin.H{"message": script.ErrorMessage})
	} else {
		c.SSEvent("result", script.Response)
	}
	c.Writer.Flush()
}

func (s *Server) handleFeedback(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	payload, err := felicity.DecodeFeedbackPayload(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	status := s.feedbackStatus
	if status == 0 {
		s.feedback = append(s.feedback, ReceivedFeedback{
			AnswerFeedbackID: c.Param("answerId"),
			Payload:          payload,
		})
	}
	s.mu.Unlock()

	if status != 0 {
		c.JSON(status, gin.H{"message": "scripted feedback failure"})
		return
	}
	c.Status(http.StatusNoContent)
}

func wait(c *gin.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-c.Request.Context().Done():
		return false
	case <-time.After(d):
		return true
	}
}
