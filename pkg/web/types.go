// Package web provides HTTP request and response types for the Archon API.
package web

import "github.com/archonhq/archon/pkg/models"

// StartWorkflowRequest represents the request body for starting a workflow
// instance on a node.
type StartWorkflowRequest struct {
	DefinitionUUID string `json:"definition_uuid" validate:"required"`
	NodeUUID       string `json:"node_uuid"       validate:"required"`
}

// TransitionRequest represents the request body for signalling a running
// workflow instance.
type TransitionRequest struct {
	Signal string `json:"signal" validate:"required,min=1"`
}

// RunActionRequest represents the request body for running an action feature.
// NodeUUIDs may be empty for node-less actions.
type RunActionRequest struct {
	NodeUUIDs []string       `json:"node_uuids"`
	Params    map[string]any `json:"params"`
}

// RunAIToolRequest represents the request body for running an AI tool feature.
type RunAIToolRequest struct {
	Params map[string]any `json:"params"`
}

// UpdateNodeRequest represents the request body for editing a node governed
// by a running workflow instance. All fields are optional partial updates.
type UpdateNodeRequest struct {
	Title      *string        `json:"title,omitempty"      validate:"omitempty,min=1"`
	Properties map[string]any `json:"properties,omitempty"`
}

// FeatureSummary is the filtered listing representation of a feature. Body
// wiring and runAs identities stay server-side.
type FeatureSummary struct {
	ID              string                    `json:"id"`
	Name            string                    `json:"name"`
	Description     string                    `json:"description,omitempty"`
	ExposeAction    bool                      `json:"expose_action"`
	ExposeExtension bool                      `json:"expose_extension"`
	ExposeAITool    bool                      `json:"expose_ai_tool"`
	Parameters      []models.FeatureParameter `json:"parameters,omitempty"`
}

// TransformFeatureSummary builds the public listing view of a feature.
func TransformFeatureSummary(feature models.Feature) FeatureSummary {
	return FeatureSummary{
		ID:              feature.ID,
		Name:            feature.Name,
		Description:     feature.Description,
		ExposeAction:    feature.ExposeAction,
		ExposeExtension: feature.ExposeExtension,
		ExposeAITool:    feature.ExposeAITool,
		Parameters:      feature.Parameters,
	}
}
