package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func filterTestNode() *Node {
	return &Node{
		UUID:     "n-1",
		Title:    "invoice-2024.pdf",
		Mimetype: "application/pdf",
		Parent:   "folder-1",
		Owner:    "alice@example.com",
		File:     &FileAttributes{Size: 4096},
		Properties: map[string]any{
			"department": "finance",
			"tags":       []any{"q3", "reviewed"},
			"priority":   7,
		},
	}
}

func TestNodeFilter_Matches(t *testing.T) {
	node := filterTestNode()

	testCases := []struct {
		name    string
		filter  NodeFilter
		matches bool
	}{
		{
			name:    "equal on builtin field",
			filter:  NodeFilter{Field: "mimetype", Operator: OperatorEqual, Value: "application/pdf"},
			matches: true,
		},
		{
			name:    "equal mismatch",
			filter:  NodeFilter{Field: "mimetype", Operator: OperatorEqual, Value: "image/png"},
			matches: false,
		},
		{
			name:    "not equal",
			filter:  NodeFilter{Field: "owner", Operator: OperatorNotEqual, Value: "bob@example.com"},
			matches: true,
		},
		{
			name:    "numeric comparison on size",
			filter:  NodeFilter{Field: "size", Operator: OperatorGreater, Value: 1024},
			matches: true,
		},
		{
			name:    "numeric comparison rejects",
			filter:  NodeFilter{Field: "size", Operator: OperatorLess, Value: 1024},
			matches: false,
		},
		{
			name:    "numeric equality across types",
			filter:  NodeFilter{Field: "priority", Operator: OperatorEqual, Value: 7.0},
			matches: true,
		},
		{
			name:    "custom property",
			filter:  NodeFilter{Field: "department", Operator: OperatorEqual, Value: "finance"},
			matches: true,
		},
		{
			name:    "custom property with prefix",
			filter:  NodeFilter{Field: "properties.department", Operator: OperatorEqual, Value: "finance"},
			matches: true,
		},
		{
			name:    "missing field never matches",
			filter:  NodeFilter{Field: "classification", Operator: OperatorNotEqual, Value: "secret"},
			matches: false,
		},
		{
			name:    "contains on list property",
			filter:  NodeFilter{Field: "tags", Operator: OperatorContains, Value: "reviewed"},
			matches: true,
		},
		{
			name:    "not contains",
			filter:  NodeFilter{Field: "tags", Operator: OperatorNotContains, Value: "archived"},
			matches: true,
		},
		{
			name:    "contains on string field",
			filter:  NodeFilter{Field: "title", Operator: OperatorContains, Value: "2024"},
			matches: true,
		},
		{
			name:    "in set",
			filter:  NodeFilter{Field: "mimetype", Operator: OperatorIn, Value: []any{"application/pdf", "image/png"}},
			matches: true,
		},
		{
			name:    "not in set",
			filter:  NodeFilter{Field: "mimetype", Operator: OperatorNotIn, Value: []any{"image/png"}},
			matches: true,
		},
		{
			name:    "starts with",
			filter:  NodeFilter{Field: "title", Operator: OperatorStartsWith, Value: "invoice-"},
			matches: true,
		},
		{
			name:    "regex match",
			filter:  NodeFilter{Field: "title", Operator: OperatorMatch, Value: `^invoice-\d{4}\.pdf$`},
			matches: true,
		},
		{
			name:    "invalid regex never matches",
			filter:  NodeFilter{Field: "title", Operator: OperatorMatch, Value: "(["},
			matches: false,
		},
		{
			name:    "unknown operator never matches",
			filter:  NodeFilter{Field: "title", Operator: "~=", Value: "invoice"},
			matches: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.matches, tc.filter.Matches(node))
		})
	}
}

func TestMatchesFilters_AndSemantics(t *testing.T) {
	node := filterTestNode()

	assert.True(t, MatchesFilters(node, nil), "empty filter list matches every node")

	assert.True(t, MatchesFilters(node, []NodeFilter{
		{Field: "mimetype", Operator: OperatorEqual, Value: "application/pdf"},
		{Field: "department", Operator: OperatorEqual, Value: "finance"},
	}))

	assert.False(t, MatchesFilters(node, []NodeFilter{
		{Field: "mimetype", Operator: OperatorEqual, Value: "application/pdf"},
		{Field: "department", Operator: OperatorEqual, Value: "legal"},
	}), "a single failing filter rejects the node")
}

func TestNode_FieldValue_SizeRequiresFile(t *testing.T) {
	folder := &Node{UUID: "f-1", Title: "inbox", Mimetype: FolderMimetype}

	_, ok := folder.FieldValue("size")
	assert.False(t, ok)
}
