package models

// GORM models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QueryRecord is one settled search.
type QueryRecord struct {
	BaseModel
	SessionID        string `json:"session_id" gorm:"index"`
	QueryText        string `json:"query_text" gorm:"not null"`
	UserID           string `json:"user_id" gorm:"index"`
	Status           string `json:"status" gorm:"not null;check:status IN ('success','error')"`
	OutcomeKind      string `json:"outcome_kind"`
	TriageType       string `json:"triage_type"`
	StepCount        int    `json:"step_count" gorm:"default:0"`
	AnswerFeedbackID string `json:"answer_feedback_id" gorm:"index"`
	Reason           string `json:"reason"`
	ResponseTimeMs   int64  `json:"response_time_ms"`
}

// FeedbackRecord is one feedback call the service acknowledged.
type FeedbackRecord struct {
	BaseModel
	AnswerFeedbackID string `json:"answer_feedback_id" gorm:"not null;index"`
	Kind             string `json:"kind" gorm:"not null;check:kind IN ('vote','comment')"`
	IsCorrect        *bool  `json:"is_correct,omitempty"`
	Comment          string `json:"comment,omitempty"`
}

// Database interfaces for repository pattern
type QueryRecordRepository interface {
	Create(record *QueryRecord) error
	GetRecent(limit int) ([]QueryRecord, error)
	GetBySession(sessionID string) ([]QueryRecord, error)
	GetByAnswerID(answerFeedbackID string) (*QueryRecord, error)
}

type FeedbackRecordRepository interface {
	Create(record *FeedbackRecord) error
	GetByAnswerID(answerFeedbackID string) ([]FeedbackRecord, error)
}

// TableName methods for custom table names
func (QueryRecord) TableName() string    { return "query_records" }
func (FeedbackRecord) TableName() string { return "feedback_records" }

// Model validation methods
func (qr *QueryRecord) Validate() error {
	if qr.QueryText == "" {
		return fmt.Errorf("query text is required")
	}
	if qr.Status != "success" && qr.Status != "error" {
		return fmt.Errorf("invalid status: %s", qr.Status)
	}
	if qr.ResponseTimeMs < 0 {
		return fmt.Errorf("response time cannot be negative")
	}
	return nil
}

func (fr *FeedbackRecord) Validate() error {
	if fr.AnswerFeedbackID == "" {
		return fmt.Errorf("answer feedback ID is required")
	}
	switch fr.Kind {
	case "vote":
		if fr.IsCorrect == nil {
			return fmt.Errorf("vote requires is_correct")
		}
	case "comment":
		if fr.Comment == "" {
			return fmt.Errorf("comment text is required")
		}
	default:
		return fmt.Errorf("invalid feedback kind: %s", fr.Kind)
	}
	return nil
}

// GORM hooks
func (qr *QueryRecord) BeforeCreate(tx *gorm.DB) error {
	return qr.Validate()
}

func (fr *FeedbackRecord) BeforeCreate(tx *gorm.DB) error {
	return fr.Validate()
}
