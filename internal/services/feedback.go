package services

import (
	"context"
	"errors"
	"strings"

	"github.com/Ayash-Bera/felicity/internal/feedback"
	"github.com/Ayash-Bera/felicity/internal/metrics"
	"github.com/Ayash-Bera/felicity/internal/models"
	"github.com/sirupsen/logrus"
)

// FeedbackService drives feedback sessions by answer id and records what the
// service acknowledged.
type FeedbackService struct {
	registry *feedback.Registry
	records  models.FeedbackRecordRepository
	metrics  *metrics.Metrics
	logger   *logrus.Logger
}

func NewFeedbackService(
	registry *feedback.Registry,
	records models.FeedbackRecordRepository,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *FeedbackService {
	return &FeedbackService{
		registry: registry,
		records:  records,
		metrics:  m,
		logger:   logger,
	}
}

func (s *FeedbackService) Stage(ctx context.Context, answerFeedbackID string) (feedback.Stage, error) {
	return s.registry.Peek(ctx, answerFeedbackID)
}

// Vote records a vote and returns the stage the session moved to.
func (s *FeedbackService) Vote(ctx context.Context, answerFeedbackID string, isCorrect bool) (feedback.Stage, error) {
	fs, err := s.registry.Open(ctx, answerFeedbackID)
	if err != nil {
		return 0, err
	}

	if err := fs.Vote(ctx, isCorrect); err != nil {
		s.countFailure("vote", err)
		return fs.Stage(), err
	}

	s.metrics.Feedback.WithLabelValues("vote").Inc()
	s.record(&models.FeedbackRecord{
		AnswerFeedbackID: answerFeedbackID,
		Kind:             "vote",
		IsCorrect:        &isCorrect,
	})
	return fs.Stage(), nil
}

// Comment sends text, when not blank, and finishes the session.
func (s *FeedbackService) Comment(ctx context.Context, answerFeedbackID, text string) (feedback.Stage, error) {
	fs, err := s.registry.Open(ctx, answerFeedbackID)
	if err != nil {
		return 0, err
	}

	text = strings.TrimSpace(text)
	if err := fs.Comment(ctx, text); err != nil {
		s.countFailure("comment", err)
		return fs.Stage(), err
	}

	if text != "" {
		s.metrics.Feedback.WithLabelValues("comment").Inc()
		s.record(&models.FeedbackRecord{
			AnswerFeedbackID: answerFeedbackID,
			Kind:             "comment",
			Comment:          text,
		})
	}
	return fs.Stage(), nil
}

// Skip finishes the session without a comment.
func (s *FeedbackService) Skip(ctx context.Context, answerFeedbackID string) (feedback.Stage, error) {
	fs, err := s.registry.Open(ctx, answerFeedbackID)
	if err != nil {
		return 0, err
	}
	if err := fs.Skip(ctx); err != nil {
		return fs.Stage(), err
	}
	return fs.Stage(), nil
}

// countFailure counts only failures of the service call itself.
func (s *FeedbackService) countFailure(kind string, err error) {
	var invalid *feedback.InvalidStateError
	if errors.As(err, &invalid) {
		return
	}
	s.metrics.FeedbackErrors.WithLabelValues(kind).Inc()
}

func (s *FeedbackService) record(rec *models.FeedbackRecord) {
	if s.records == nil {
		return
	}
	if err := s.records.Create(rec); err != nil {
		s.logger.WithError(err).WithField("answer_feedback_id", rec.AnswerFeedbackID).Error("Failed to record feedback")
	}
}
