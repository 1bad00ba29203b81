package felicity

import (
	"encoding/json"
	"fmt"
)

// TriageType is the category the service sorts a query into before answering it.
type TriageType string

const (
	TriageUsage       TriageType = "usage"
	TriageData        TriageType = "data"
	TriageUnparseable TriageType = "unparseable"
	TriageInternals   TriageType = "internals"
)

// Known reports whether t is one of the declared triage categories.
func (t TriageType) Known() bool {
	switch t {
	case TriageUsage, TriageData, TriageUnparseable, TriageInternals:
		return true
	}
	return false
}

// TutorialStep is one instruction of an answer. Steps are kept in execution order.
type TutorialStep struct {
	ID         string `json:"id"`
	Action     string `json:"action"`
	Screenshot string `json:"screenshot"`
}

// SearchResponse is the result of one query.
//
// Success and GoalSatisfied are pointers so a response that omits them can be
// told apart from one that reports false.
type SearchResponse struct {
	Success          *bool          `json:"success"`
	TriageType       TriageType     `json:"triageType"`
	GoalSatisfied    *bool          `json:"goalSatisfied,omitempty"`
	Steps            []TutorialStep `json:"steps"`
	AnswerFeedbackID string         `json:"answerFeedbackId,omitempty"`
}

// Bool returns a pointer to v, for building responses by hand.
func Bool(v bool) *bool { return &v }

// QueryContext is caller-supplied correlation data forwarded to the service as is.
type QueryContext struct {
	UserID      string                 `json:"userId,omitempty"`
	Annotations map[string]interface{} `json:"annotations,omitempty"`
}

// Request models
type SearchRequest struct {
	Query   string       `json:"query"`
	Context QueryContext `json:"context"`
}

// FeedbackPayload is either a Vote or a Comment.
type FeedbackPayload interface {
	Kind() string
	isFeedbackPayload()
}

// Vote reports whether the displayed answer was correct.
type Vote struct {
	IsCorrect bool
}

// Comment is free text following a vote.
type Comment struct {
	Text string
}

func (Vote) Kind() string    { return "vote" }
func (Comment) Kind() string { return "comment" }

func (Vote) isFeedbackPayload()    {}
func (Comment) isFeedbackPayload() {}

func (v Vote) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		IsCorrect bool `json:"isCorrect"`
	}{v.IsCorrect})
}

func (c Comment) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Comment string `json:"comment"`
	}{c.Text})
}

// DecodeFeedbackPayload parses a feedback body holding exactly one of
// isCorrect or comment.
func DecodeFeedbackPayload(data []byte) (FeedbackPayload, error) {
	var raw struct {
		IsCorrect *bool   `json:"isCorrect"`
		Comment   *string `json:"comment"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode feedback payload: %w", err)
	}
	switch {
	case raw.IsCorrect != nil && raw.Comment == nil:
		return Vote{IsCorrect: *raw.IsCorrect}, nil
	case raw.Comment != nil && raw.IsCorrect == nil:
		return Comment{Text: *raw.Comment}, nil
	}
	return nil, fmt.Errorf("feedback payload must carry exactly one of isCorrect or comment")
}

// Response models
type progressEvent struct {
	Label string `json:"label"`
}

type errorEvent struct {
	Message string `json:"message"`
}
