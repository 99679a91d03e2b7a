package models

import (
	"errors"
	"fmt"
)

// Workflow definition validation errors.
var (
	ErrUnknownTargetState = errors.New("transition references unknown state")
	ErrNoInitialState     = errors.New("workflow definition has no initial state")
	ErrManyInitialStates  = errors.New("workflow definition has more than one initial state")
)

// State is one node of the workflow state graph.
type State struct {
	IsFinal bool     `json:"is_final"`
	OnEnter []string `json:"on_enter,omitempty"` // feature ids, declared order
	OnExit  []string `json:"on_exit,omitempty"`  // feature ids, declared order

	// EditorGroups may edit the governed node while the instance sits in
	// this state.
	EditorGroups []string `json:"editor_groups,omitempty"`
}

// Transition connects two states through a named signal.
type Transition struct {
	From           string   `json:"from"   validate:"required"`
	Signal         string   `json:"signal" validate:"required"`
	Target         string   `json:"target" validate:"required"`
	ActionFeatures []string `json:"action_features,omitempty"`
	GroupsAllowed  []string `json:"groups_allowed,omitempty"`
}

// WorkflowDefinition is the static state/transition graph governing a class
// of nodes. Instances snapshot the definition at start time, so edits never
// retroactively change in-flight instances.
type WorkflowDefinition struct {
	UUID        string           `json:"uuid"  validate:"required"`
	Title       string           `json:"title" validate:"required,min=3"`
	Description string           `json:"description,omitempty"`
	NodeFilters []NodeFilter     `json:"node_filters,omitempty"`
	States      map[string]State `json:"states"      validate:"required,min=1"`
	Transitions []Transition     `json:"transitions"`
}

// Validate checks structural invariants: every transition endpoint exists and
// exactly one state has no inbound transition. Runs at definition load time,
// never during transitions.
func (d *WorkflowDefinition) Validate() error {
	for _, t := range d.Transitions {
		if _, ok := d.States[t.From]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTargetState, t.From)
		}

		if _, ok := d.States[t.Target]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTargetState, t.Target)
		}
	}

	if _, err := d.initialState(); err != nil {
		return err
	}

	return nil
}

// InitialState returns the single state with no inbound transition.
func (d *WorkflowDefinition) InitialState() string {
	state, _ := d.initialState()

	return state
}

func (d *WorkflowDefinition) initialState() (string, error) {
	inbound := make(map[string]bool, len(d.States))
	for _, t := range d.Transitions {
		inbound[t.Target] = true
	}

	initial := ""

	for name := range d.States {
		if inbound[name] {
			continue
		}

		if initial != "" {
			return "", ErrManyInitialStates
		}

		initial = name
	}

	if initial == "" {
		return "", ErrNoInitialState
	}

	return initial, nil
}

// TransitionFor looks up the transition defined for (state, signal).
func (d *WorkflowDefinition) TransitionFor(state, signal string) (Transition, bool) {
	for _, t := range d.Transitions {
		if t.From == state && t.Signal == signal {
			return t, true
		}
	}

	return Transition{}, false
}

// Clone returns a deep copy of the definition.
func (d *WorkflowDefinition) Clone() WorkflowDefinition {
	clone := *d

	clone.NodeFilters = append([]NodeFilter(nil), d.NodeFilters...)
	clone.Transitions = make([]Transition, len(d.Transitions))

	for i, t := range d.Transitions {
		cloned := t
		cloned.ActionFeatures = append([]string(nil), t.ActionFeatures...)
		cloned.GroupsAllowed = append([]string(nil), t.GroupsAllowed...)
		clone.Transitions[i] = cloned
	}

	clone.States = make(map[string]State, len(d.States))
	for name, state := range d.States {
		cloned := state
		cloned.OnEnter = append([]string(nil), state.OnEnter...)
		cloned.OnExit = append([]string(nil), state.OnExit...)
		cloned.EditorGroups = append([]string(nil), state.EditorGroups...)
		clone.States[name] = cloned
	}

	return clone
}
