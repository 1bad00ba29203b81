package models

import (
	"github.com/Ayash-Bera/felicity/internal/classify"
	"github.com/Ayash-Bera/felicity/internal/felicity"
	"github.com/Ayash-Bera/felicity/internal/session"
)

// SessionView is the wire form of a query session state.
type SessionView struct {
	SessionID string       `json:"session_id"`
	Status    string       `json:"status"`
	Query     string       `json:"query,omitempty"`
	Progress  string       `json:"progress,omitempty"`
	Outcome   *OutcomeView `json:"outcome,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	ElapsedMs int64        `json:"elapsed_ms,omitempty"`
}

type OutcomeView struct {
	Kind             string     `json:"kind"`
	Steps            []StepView `json:"steps,omitempty"`
	AnswerFeedbackID string     `json:"answer_feedback_id,omitempty"`
	TriageType       string     `json:"triage_type,omitempty"`
	Reason           string     `json:"reason,omitempty"`
}

type StepView struct {
	ID         string `json:"id"`
	Action     string `json:"action"`
	Screenshot string `json:"screenshot"`
}

func NewSessionView(sessionID string, state session.State) SessionView {
	view := SessionView{SessionID: sessionID, Status: string(state.Status())}

	switch s := state.(type) {
	case session.Pending:
		view.Query = s.Query
		view.Progress = s.Progress
	case session.Success:
		view.Query = s.Query
		view.Outcome = NewOutcomeView(s.Outcome)
		view.ElapsedMs = s.Elapsed.Milliseconds()
	case session.Failed:
		view.Query = s.Query
		view.Reason = s.Reason
		view.ElapsedMs = s.Elapsed.Milliseconds()
	}
	return view
}

func NewOutcomeView(outcome classify.Outcome) *OutcomeView {
	if outcome == nil {
		return nil
	}
	view := &OutcomeView{Kind: string(outcome.Kind())}

	switch o := outcome.(type) {
	case classify.Answered:
		view.Steps = newStepViews(o.Steps)
		view.AnswerFeedbackID = o.AnswerFeedbackID
	case classify.OffTopic:
		view.TriageType = string(o.Triage)
	case classify.Malformed:
		view.Reason = o.Reason
	}
	return view
}

func newStepViews(steps []felicity.TutorialStep) []StepView {
	views := make([]StepView, len(steps))
	for i, step := range steps {
		views[i] = StepView{ID: step.ID, Action: step.Action, Screenshot: step.Screenshot}
	}
	return views
}
