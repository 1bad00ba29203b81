// Package feedback collects one vote and at most one comment per answer.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Ayash-Bera/felicity/internal/felicity"
	"github.com/sirupsen/logrus"
)

// Stage is the position of a Session in its vote-then-comment sequence.
type Stage int

const (
	AwaitingVote Stage = iota
	AwaitingComment
	Done
)

func (s Stage) String() string {
	switch s {
	case AwaitingVote:
		return "awaiting_vote"
	case AwaitingComment:
		return "awaiting_comment"
	case Done:
		return "done"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ParseStage is the inverse of Stage.String.
func ParseStage(s string) (Stage, error) {
	for _, st := range []Stage{AwaitingVote, AwaitingComment, Done} {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown feedback stage %q", s)
}

// Sender delivers feedback to the answering service.
type Sender interface {
	SendFeedback(ctx context.Context, answerFeedbackID string, payload felicity.FeedbackPayload) error
}

// InvalidStateError is returned when an operation is called in a stage that
// does not allow it. It signals a caller bug, not a service failure.
type InvalidStateError struct {
	Op               string
	Stage            Stage
	AnswerFeedbackID string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("feedback %s not allowed for answer %s in stage %s", e.Op, e.AnswerFeedbackID, e.Stage)
}

// Session is the feedback state machine for one answer. Operations are
// serialized: the lock is held across the network call, so a second
// concurrent Vote sees the stage the first one left behind.
type Session struct {
	id     string
	sender Sender
	store  Store
	logger *logrus.Logger
	onDone func()

	mu    sync.Mutex
	stage Stage
}

// NewSession returns a session awaiting a vote.
func NewSession(answerFeedbackID string, sender Sender, logger *logrus.Logger) *Session {
	return newSession(answerFeedbackID, AwaitingVote, sender, nil, logger)
}

func newSession(id string, stage Stage, sender Sender, store Store, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	return &Session{
		id:     id,
		sender: sender,
		store:  store,
		logger: logger,
		stage:  stage,
	}
}

func (s *Session) AnswerFeedbackID() string { return s.id }

func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Vote sends the vote and moves to AwaitingComment. If the call fails the
// vote was not recorded and the session keeps awaiting it.
func (s *Session) Vote(ctx context.Context, isCorrect bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage != AwaitingVote {
		return s.invalid("vote")
	}
	if err := s.sender.SendFeedback(ctx, s.id, felicity.Vote{IsCorrect: isCorrect}); err != nil {
		s.logger.WithError(err).WithField("answer_feedback_id", s.id).Warn("Failed to send vote")
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"answer_feedback_id": s.id,
		"is_correct":         isCorrect,
	}).Info("Vote recorded")
	s.advance(ctx, AwaitingComment)
	return nil
}

// Comment sends text, when it is not blank, and finishes the session. The
// session finishes even when sending fails; the error is still returned.
func (s *Session) Comment(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage != AwaitingComment {
		return s.invalid("comment")
	}

	var sendErr error
	if text = strings.TrimSpace(text); text != "" {
		sendErr = s.sender.SendFeedback(ctx, s.id, felicity.Comment{Text: text})
		if sendErr != nil {
			s.logger.WithError(sendErr).WithField("answer_feedback_id", s.id).Warn("Failed to send comment")
		}
	}
	s.advance(ctx, Done)
	return sendErr
}

// Skip finishes the session without a comment.
func (s *Session) Skip(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage != AwaitingComment {
		return s.invalid("skip")
	}
	s.advance(ctx, Done)
	return nil
}

func (s *Session) invalid(op string) error {
	err := &InvalidStateError{Op: op, Stage: s.stage, AnswerFeedbackID: s.id}
	s.logger.WithError(err).Error("Feedback session misuse")
	return err
}

func (s *Session) advance(ctx context.Context, next Stage) {
	s.stage = next
	if s.store != nil {
		if err := s.store.Save(ctx, s.id, next); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"answer_feedback_id": s.id,
				"stage":              next,
			}).Error("Failed to persist feedback stage")
		}
	}
	if next == Done && s.onDone != nil {
		s.onDone()
	}
}
