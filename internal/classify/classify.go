// Package classify maps a service response onto the closed set of outcomes a
// front end has to render.
package classify

import (
	"fmt"

	"github.com/Ayash-Bera/felicity/internal/felicity"
)

// Kind names an outcome category.
type Kind string

const (
	KindAnswered   Kind = "answered"
	KindImpossible Kind = "impossible"
	KindOffTopic   Kind = "off_topic"
	KindMalformed  Kind = "malformed"
	KindInternal   Kind = "internal"
)

// Outcome is one of Answered, Impossible, OffTopic, Malformed or Internal.
type Outcome interface {
	Kind() Kind
	isOutcome()
}

// Answered carries the steps to show, in execution order.
type Answered struct {
	Steps            []felicity.TutorialStep
	AnswerFeedbackID string
}

// Impossible is a usage question the service could not turn into steps.
type Impossible struct{}

// OffTopic is a query triaged as something other than a usage question.
type OffTopic struct {
	Triage felicity.TriageType
}

// Malformed is a response that failed shape validation.
type Malformed struct {
	Reason string
}

// Internal is a well-formed response whose success flag is false.
type Internal struct{}

func (Answered) Kind() Kind   { return KindAnswered }
func (Impossible) Kind() Kind { return KindImpossible }
func (OffTopic) Kind() Kind   { return KindOffTopic }
func (Malformed) Kind() Kind  { return KindMalformed }
func (Internal) Kind() Kind   { return KindInternal }

func (Answered) isOutcome()   {}
func (Impossible) isOutcome() {}
func (OffTopic) isOutcome()   {}
func (Malformed) isOutcome()  {}
func (Internal) isOutcome()   {}

// HasFeedback reports whether the answer can receive feedback.
func (a Answered) HasFeedback() bool { return a.AnswerFeedbackID != "" }

// Classify is total: every response, including nil, maps to exactly one outcome.
//
// Rules apply in order: shape errors are Malformed, a false success flag is
// Internal whatever the triage, a non-usage triage is OffTopic, and a usage
// answer is Impossible or Answered.
func Classify(resp *felicity.SearchResponse) Outcome {
	if reason := validateEnvelope(resp); reason != "" {
		return Malformed{Reason: reason}
	}
	if !*resp.Success {
		return Internal{}
	}
	if resp.TriageType != felicity.TriageUsage {
		return OffTopic{Triage: resp.TriageType}
	}
	if reason := validateUsage(resp); reason != "" {
		return Malformed{Reason: reason}
	}
	if !*resp.GoalSatisfied || len(resp.Steps) == 0 {
		return Impossible{}
	}

	steps := make([]felicity.TutorialStep, len(resp.Steps))
	copy(steps, resp.Steps)
	return Answered{Steps: steps, AnswerFeedbackID: resp.AnswerFeedbackID}
}

func validateEnvelope(resp *felicity.SearchResponse) string {
	switch {
	case resp == nil:
		return "empty response"
	case resp.Success == nil:
		return "missing success"
	case resp.TriageType == "":
		return "missing triageType"
	case !resp.TriageType.Known():
		return fmt.Sprintf("unknown triageType %q", resp.TriageType)
	}
	return ""
}

// validateUsage checks the fields a usage answer depends on. Steps are only
// inspected when the goal is satisfied.
func validateUsage(resp *felicity.SearchResponse) string {
	if resp.GoalSatisfied == nil {
		return "missing goalSatisfied"
	}
	if !*resp.GoalSatisfied {
		return ""
	}
	for i, step := range resp.Steps {
		switch {
		case step.ID == "":
			return fmt.Sprintf("step %d: missing id", i+1)
		case step.Action == "":
			return fmt.Sprintf("step %d: missing action", i+1)
		case step.Screenshot == "":
			return fmt.Sprintf("step %d: missing screenshot", i+1)
		}
	}
	return ""
}
