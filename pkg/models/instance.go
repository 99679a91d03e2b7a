package models

import "time"

// HistoryEntry records one committed transition of a workflow instance.
type HistoryEntry struct {
	Signal     string    `json:"signal"`
	FromState  string    `json:"from_state"`
	ToState    string    `json:"to_state"`
	UserEmail  string    `json:"user_email"`
	OccurredOn time.Time `json:"occurred_on"`
}

// WorkflowInstance is one node's live progress through a workflow definition.
// The definition is snapshotted at start time. Once Running is false the
// instance is terminal and immutable except for deletion.
type WorkflowInstance struct {
	UUID           string             `json:"uuid"`
	DefinitionUUID string             `json:"definition_uuid"`
	NodeUUID       string             `json:"node_uuid"`
	Definition     WorkflowDefinition `json:"definition"`

	CurrentState string `json:"current_state"`
	Running      bool   `json:"running"`
	Cancelled    bool   `json:"cancelled"`
	StartedBy    string `json:"started_by"`

	History []HistoryEntry `json:"history"`

	// Version increments on every persisted mutation; repositories reject
	// updates carrying a stale version.
	Version int `json:"version"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// LockToken is the owner token the instance uses for its node lock. Locks
// acquired at start are only releasable through this instance.
func (i *WorkflowInstance) LockToken() string {
	return "workflow:" + i.UUID
}

// CurrentStateSpec returns the snapshot definition of the current state.
func (i *WorkflowInstance) CurrentStateSpec() (State, bool) {
	state, ok := i.Definition.States[i.CurrentState]

	return state, ok
}

// Clone returns a deep copy of the instance. Repositories hand out clones so
// callers can never mutate stored state except through Update.
func (i *WorkflowInstance) Clone() *WorkflowInstance {
	clone := *i
	clone.Definition = i.Definition.Clone()
	clone.History = append([]HistoryEntry(nil), i.History...)

	return &clone
}
