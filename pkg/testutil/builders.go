// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/archonhq/archon/pkg/models"
	"github.com/google/uuid"
)

// CreateTestNode creates a test file node with default values that can be
// overridden.
func CreateTestNode(overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		UUID:     uuid.New().String(),
		Title:    "report.pdf",
		Mimetype: "application/pdf",
		Owner:    "owner@example.com",
		File:     &models.FileAttributes{Size: 2048, Location: "store://report.pdf"},
		Properties: map[string]any{
			"department": "finance",
		},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithUUID sets the node UUID.
func WithUUID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.UUID = id
	}
}

// WithTitle sets the node title.
func WithTitle(title string) func(*models.Node) {
	return func(n *models.Node) {
		n.Title = title
	}
}

// WithMimetype sets the node mimetype.
func WithMimetype(mimetype string) func(*models.Node) {
	return func(n *models.Node) {
		n.Mimetype = mimetype
	}
}

// WithParent sets the node parent folder.
func WithParent(parentUUID string) func(*models.Node) {
	return func(n *models.Node) {
		n.Parent = parentUUID
	}
}

// WithProperties sets the node custom properties.
func WithProperties(properties map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Properties = properties
	}
}

// WithFolder configures the node as a folder, optionally with hooks.
func WithFolder(folder *models.FolderAttributes) func(*models.Node) {
	return func(n *models.Node) {
		n.Mimetype = models.FolderMimetype
		n.File = nil
		n.Folder = folder

		if n.Folder == nil {
			n.Folder = &models.FolderAttributes{}
		}
	}
}

// CreateTestFeature creates a manually runnable action feature with default
// values that can be overridden.
func CreateTestFeature(id string, overrides ...func(*models.Feature)) models.Feature {
	feature := models.Feature{
		ID:           id,
		Name:         "Test Feature",
		Description:  "A feature for testing",
		ExposeAction: true,
		RunManually:  true,
	}

	for _, override := range overrides {
		override(&feature)
	}

	return feature
}

// WithFilters sets the feature node filters.
func WithFilters(filters ...models.NodeFilter) func(*models.Feature) {
	return func(f *models.Feature) {
		f.Filters = filters
	}
}

// WithGroupsAllowed restricts the feature to the given groups.
func WithGroupsAllowed(groups ...string) func(*models.Feature) {
	return func(f *models.Feature) {
		f.GroupsAllowed = groups
	}
}

// WithParameters sets the feature parameter declarations.
func WithParameters(params ...models.FeatureParameter) func(*models.Feature) {
	return func(f *models.Feature) {
		f.Parameters = params
	}
}

// CreateTestDefinition creates a minimal draft/review workflow definition.
// "submit" moves draft to review, "approve" and "reject" end the workflow in
// their respective final states.
func CreateTestDefinition(overrides ...func(*models.WorkflowDefinition)) models.WorkflowDefinition {
	definition := models.WorkflowDefinition{
		UUID:  uuid.New().String(),
		Title: "Document Approval",
		States: map[string]models.State{
			"draft":    {},
			"review":   {},
			"approved": {IsFinal: true},
			"rejected": {IsFinal: true},
		},
		Transitions: []models.Transition{
			{From: "draft", Signal: "submit", Target: "review"},
			{From: "review", Signal: "approve", Target: "approved"},
			{From: "review", Signal: "reject", Target: "rejected"},
		},
	}

	for _, override := range overrides {
		override(&definition)
	}

	return definition
}
