package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approvalDefinition() WorkflowDefinition {
	return WorkflowDefinition{
		UUID:  "wf-approval",
		Title: "Document Approval",
		States: map[string]State{
			"draft":    {},
			"review":   {},
			"approved": {IsFinal: true},
		},
		Transitions: []Transition{
			{From: "draft", Signal: "submit", Target: "review"},
			{From: "review", Signal: "approve", Target: "approved"},
		},
	}
}

func TestWorkflowDefinition_Validate(t *testing.T) {
	definition := approvalDefinition()

	require.NoError(t, definition.Validate())
	assert.Equal(t, "draft", definition.InitialState())
}

func TestWorkflowDefinition_Validate_UnknownState(t *testing.T) {
	definition := approvalDefinition()
	definition.Transitions = append(definition.Transitions, Transition{
		From: "review", Signal: "escalate", Target: "legal",
	})

	assert.ErrorIs(t, definition.Validate(), ErrUnknownTargetState)

	definition = approvalDefinition()
	definition.Transitions = append(definition.Transitions, Transition{
		From: "limbo", Signal: "wake", Target: "review",
	})

	assert.ErrorIs(t, definition.Validate(), ErrUnknownTargetState)
}

func TestWorkflowDefinition_Validate_NoInitialState(t *testing.T) {
	definition := approvalDefinition()

	// A transition back into draft leaves no state without inbound edges.
	definition.Transitions = append(definition.Transitions, Transition{
		From: "review", Signal: "reject", Target: "draft",
	})

	assert.ErrorIs(t, definition.Validate(), ErrNoInitialState)
}

func TestWorkflowDefinition_Validate_ManyInitialStates(t *testing.T) {
	definition := approvalDefinition()
	definition.States["orphan"] = State{}

	assert.ErrorIs(t, definition.Validate(), ErrManyInitialStates)
}

func TestWorkflowDefinition_TransitionFor(t *testing.T) {
	definition := approvalDefinition()

	transition, ok := definition.TransitionFor("draft", "submit")
	require.True(t, ok)
	assert.Equal(t, "review", transition.Target)

	_, ok = definition.TransitionFor("draft", "approve")
	assert.False(t, ok)

	_, ok = definition.TransitionFor("approved", "submit")
	assert.False(t, ok)
}

func TestWorkflowDefinition_Clone_Independence(t *testing.T) {
	definition := approvalDefinition()
	definition.States["review"] = State{OnEnter: []string{"notify"}}

	clone := definition.Clone()
	clone.States["review"] = State{OnEnter: []string{"changed"}}
	clone.Transitions[0].Signal = "changed"

	assert.Equal(t, []string{"notify"}, definition.States["review"].OnEnter)
	assert.Equal(t, "submit", definition.Transitions[0].Signal)
}

func TestWorkflowInstance_LockToken(t *testing.T) {
	instance := WorkflowInstance{UUID: "abc-123"}

	assert.Equal(t, "workflow:abc-123", instance.LockToken())
}

func TestWorkflowInstance_Clone_Independence(t *testing.T) {
	instance := &WorkflowInstance{
		UUID:         "i-1",
		CurrentState: "draft",
		Running:      true,
		Definition:   approvalDefinition(),
		History: []HistoryEntry{
			{Signal: "submit", FromState: "draft", ToState: "review"},
		},
	}

	clone := instance.Clone()
	clone.History[0].Signal = "changed"
	clone.CurrentState = "review"

	assert.Equal(t, "submit", instance.History[0].Signal)
	assert.Equal(t, "draft", instance.CurrentState)
}
