package classify

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/Ayash-Bera/felicity/internal/felicity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool { return &v }

var oneStep = []felicity.TutorialStep{{ID: "s1", Action: "Open Timecards", Screenshot: "img1.png"}}

func TestClassify_TimecardAnswer(t *testing.T) {
	resp := &felicity.SearchResponse{
		Success:          felicity.Bool(true),
		TriageType:       felicity.TriageUsage,
		GoalSatisfied:    boolPtr(true),
		Steps:            oneStep,
		AnswerFeedbackID: "fb-1",
	}

	outcome := Classify(resp)
	answered, ok := outcome.(Answered)
	require.True(t, ok, "expected Answered, got %T", outcome)
	assert.Equal(t, oneStep, answered.Steps)
	assert.Equal(t, "fb-1", answered.AnswerFeedbackID)
	assert.True(t, answered.HasFeedback())
}

// Every combination of triage type, goal flag and step presence maps to
// exactly one expected kind.
func TestClassify_IsTotal(t *testing.T) {
	triages := []felicity.TriageType{
		felicity.TriageUsage, felicity.TriageData, felicity.TriageUnparseable, felicity.TriageInternals,
	}
	goals := []*bool{nil, boolPtr(false), boolPtr(true)}
	stepSets := [][]felicity.TutorialStep{nil, oneStep}

	for _, triage := range triages {
		for _, goal := range goals {
			for _, steps := range stepSets {
				name := fmt.Sprintf("%s/goal=%v/steps=%d", triage, describe(goal), len(steps))
				t.Run(name, func(t *testing.T) {
					outcome := Classify(&felicity.SearchResponse{
						Success:       felicity.Bool(true),
						TriageType:    triage,
						GoalSatisfied: goal,
						Steps:         steps,
					})
					require.NotNil(t, outcome)
					assert.Equal(t, expectedKind(triage, goal, len(steps)), outcome.Kind())
				})
			}
		}
	}
}

func describe(goal *bool) string {
	if goal == nil {
		return "missing"
	}
	return fmt.Sprint(*goal)
}

func expectedKind(triage felicity.TriageType, goal *bool, steps int) Kind {
	switch {
	case triage != felicity.TriageUsage:
		return KindOffTopic
	case goal == nil:
		return KindMalformed
	case !*goal:
		return KindImpossible
	case steps == 0:
		return KindImpossible
	default:
		return KindAnswered
	}
}

func TestClassify_SatisfiedWithoutStepsIsImpossible(t *testing.T) {
	outcome := Classify(&felicity.SearchResponse{
		Success:       felicity.Bool(true),
		TriageType:    felicity.TriageUsage,
		GoalSatisfied: boolPtr(true),
		Steps:         []felicity.TutorialStep{},
	})
	assert.Equal(t, Impossible{}, outcome)
}

func TestClassify_OffTopicKeepsTriage(t *testing.T) {
	outcome := Classify(&felicity.SearchResponse{Success: felicity.Bool(true), TriageType: felicity.TriageUnparseable})
	assert.Equal(t, OffTopic{Triage: felicity.TriageUnparseable}, outcome)
}

func TestClassify_Malformed(t *testing.T) {
	cases := map[string]*felicity.SearchResponse{
		"nil response":   nil,
		"no triage":      {Success: felicity.Bool(true)},
		"unknown triage": {Success: felicity.Bool(true), TriageType: "billing"},
		"no success flag": {
			TriageType:    felicity.TriageUsage,
			GoalSatisfied: boolPtr(true),
			Steps:         oneStep,
		},
		"step without screenshot": {
			Success:       felicity.Bool(true),
			TriageType:    felicity.TriageUsage,
			GoalSatisfied: boolPtr(true),
			Steps:         []felicity.TutorialStep{{ID: "s1", Action: "Open Timecards"}},
		},
		"step without id": {
			Success:       felicity.Bool(true),
			TriageType:    felicity.TriageUsage,
			GoalSatisfied: boolPtr(true),
			Steps:         []felicity.TutorialStep{{Action: "Open Timecards", Screenshot: "img1.png"}},
		},
	}

	for name, resp := range cases {
		t.Run(name, func(t *testing.T) {
			outcome := Classify(resp)
			malformed, ok := outcome.(Malformed)
			require.True(t, ok, "expected Malformed, got %T", outcome)
			assert.NotEmpty(t, malformed.Reason)
		})
	}
}

func TestClassify_DecodedWithoutSuccessIsMalformed(t *testing.T) {
	body := `{"triageType":"usage","goalSatisfied":true,` +
		`"steps":[{"id":"s1","action":"a","screenshot":"x"}],"answerFeedbackId":"fb"}`

	var resp felicity.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, Malformed{Reason: "missing success"}, Classify(&resp))
}

func TestClassify_UnsuccessfulIsInternal(t *testing.T) {
	for _, triage := range []felicity.TriageType{
		felicity.TriageUsage, felicity.TriageData, felicity.TriageUnparseable, felicity.TriageInternals,
	} {
		t.Run(string(triage), func(t *testing.T) {
			outcome := Classify(&felicity.SearchResponse{Success: felicity.Bool(false), TriageType: triage})
			assert.Equal(t, Internal{}, outcome)
		})
	}
}

func TestClassify_CopiesSteps(t *testing.T) {
	steps := []felicity.TutorialStep{
		{ID: "s1", Action: "first", Screenshot: "1.png"},
		{ID: "s2", Action: "second", Screenshot: "2.png"},
	}
	resp := &felicity.SearchResponse{Success: felicity.Bool(true), TriageType: felicity.TriageUsage, GoalSatisfied: boolPtr(true), Steps: steps}

	answered := Classify(resp).(Answered)
	steps[0].Action = "mutated"

	assert.Equal(t, "first", answered.Steps[0].Action)
	assert.Equal(t, "s2", answered.Steps[1].ID)
	assert.False(t, answered.HasFeedback())
}
