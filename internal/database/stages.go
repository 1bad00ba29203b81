package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ayash-Bera/felicity/internal/feedback"
	"github.com/go-redis/redis/v8"
)

const (
	FeedbackStageKey = "feedback:stage:%s"

	DefaultStageTTL = 24 * time.Hour
)

// StageStore keeps feedback stages in Redis so every gateway replica agrees
// on whether an answer has already been voted on.
type StageStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStageStore(client *redis.Client, ttl time.Duration) *StageStore {
	if ttl <= 0 {
		ttl = DefaultStageTTL
	}
	return &StageStore{client: client, ttl: ttl}
}

func (s *StageStore) Load(ctx context.Context, answerFeedbackID string) (feedback.Stage, bool, error) {
	raw, err := s.client.Get(ctx, fmt.Sprintf(FeedbackStageKey, answerFeedbackID)).Result()
	if errors.Is(err, redis.Nil) {
		return feedback.AwaitingVote, false, nil
	}
	if err != nil {
		return feedback.AwaitingVote, false, err
	}

	stage, err := feedback.ParseStage(raw)
	if err != nil {
		return feedback.AwaitingVote, false, err
	}
	return stage, true, nil
}

func (s *StageStore) Save(ctx context.Context, answerFeedbackID string, stage feedback.Stage) error {
	return s.client.Set(ctx, fmt.Sprintf(FeedbackStageKey, answerFeedbackID), stage.String(), s.ttl).Err()
}
