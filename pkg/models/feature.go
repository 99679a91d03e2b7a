package models

// ParameterType enumerates the value types a feature parameter accepts.
type ParameterType string

const (
	ParameterString  ParameterType = "string"
	ParameterNumber  ParameterType = "number"
	ParameterBoolean ParameterType = "boolean"
	ParameterArray   ParameterType = "array"
	ParameterObject  ParameterType = "object"
)

// FeatureParameter describes one declared parameter of a feature.
type FeatureParameter struct {
	Name         string        `json:"name"     validate:"required"`
	Type         ParameterType `json:"type"     validate:"required"`
	Required     bool          `json:"required"`
	DefaultValue any           `json:"default_value,omitempty"`
	Description  string        `json:"description,omitempty"`
}

// Feature is a pluggable, declaratively gated unit of executable logic.
// Definitions are immutable; changes replace the whole document.
type Feature struct {
	ID          string `json:"id"          validate:"required"`
	Name        string `json:"name"        validate:"required,min=3"`
	Description string `json:"description"`

	// Exposure routes. A feature exposed as none of these is inert but valid.
	ExposeAction    bool `json:"expose_action"`
	ExposeExtension bool `json:"expose_extension"`
	ExposeAITool    bool `json:"expose_ai_tool"`

	// Automatic trigger flags.
	RunOnCreates bool `json:"run_on_creates"`
	RunOnUpdates bool `json:"run_on_updates"`
	RunOnDeletes bool `json:"run_on_deletes"`
	RunManually  bool `json:"run_manually"`

	// RunOnSchedule holds an optional cron expression for scheduled dispatch.
	RunOnSchedule string `json:"run_on_schedule,omitempty"`

	// Filters gate eligibility: a node must satisfy all of them.
	Filters []NodeFilter `json:"filters,omitempty"`

	// GroupsAllowed restricts manual invocation; empty means no group
	// restriction beyond base authorization.
	GroupsAllowed []string `json:"groups_allowed,omitempty"`

	// RunAs optionally impersonates another identity during execution.
	RunAs string `json:"run_as,omitempty"`

	Parameters []FeatureParameter `json:"parameters,omitempty"`

	ReturnType        string `json:"return_type,omitempty"`
	ReturnDescription string `json:"return_description,omitempty"`
	ReturnContentType string `json:"return_content_type,omitempty"`
}

// TriggersOn reports whether the feature's trigger flags cover the event kind.
func (f *Feature) TriggersOn(kind NodeEventKind) bool {
	switch kind {
	case NodeCreated:
		return f.RunOnCreates
	case NodeUpdated:
		return f.RunOnUpdates
	case NodeDeleted:
		return f.RunOnDeletes
	}

	return false
}

// AllowsGroup reports whether any of the caller's groups clears the feature's
// group restriction. An empty GroupsAllowed set allows everyone.
func (f *Feature) AllowsGroup(groups []string) bool {
	if len(f.GroupsAllowed) == 0 {
		return true
	}

	for _, allowed := range f.GroupsAllowed {
		for _, group := range groups {
			if group == allowed {
				return true
			}
		}
	}

	return false
}
