package models

type CreateSessionRequest struct {
	UserID      string                 `json:"user_id"`
	Annotations map[string]interface{} `json:"annotations"`
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// SearchRequest starts a search in a hosted session. A nil Context keeps the
// context the session was created with.
type SearchRequest struct {
	Query   string           `json:"query" binding:"required"`
	Context *QueryContextDTO `json:"context"`
}

type QueryContextDTO struct {
	UserID      string                 `json:"user_id"`
	Annotations map[string]interface{} `json:"annotations"`
}

type VoteRequest struct {
	IsCorrect *bool `json:"is_correct" binding:"required"`
}

type CommentRequest struct {
	Comment string `json:"comment"`
}

type FeedbackView struct {
	AnswerFeedbackID string `json:"answer_feedback_id"`
	Stage            string `json:"stage"`
}
