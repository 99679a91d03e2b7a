package models

import (
	"fmt"
	"regexp"
	"strings"
)

// FilterOperator is the comparison applied by a node filter.
type FilterOperator string

const (
	OperatorEqual          FilterOperator = "=="
	OperatorNotEqual       FilterOperator = "!="
	OperatorGreater        FilterOperator = ">"
	OperatorGreaterOrEqual FilterOperator = ">="
	OperatorLess           FilterOperator = "<"
	OperatorLessOrEqual    FilterOperator = "<="
	OperatorContains       FilterOperator = "contains"
	OperatorNotContains    FilterOperator = "not-contains"
	OperatorIn             FilterOperator = "in"
	OperatorNotIn          FilterOperator = "not-in"
	OperatorStartsWith     FilterOperator = "starts-with"
	OperatorMatch          FilterOperator = "match"
)

// NodeFilter is a single (field, operator, value) eligibility predicate.
type NodeFilter struct {
	Field    string         `json:"field"    validate:"required"`
	Operator FilterOperator `json:"operator" validate:"required"`
	Value    any            `json:"value"`
}

// Matches reports whether the node satisfies this filter.
func (f NodeFilter) Matches(node *Node) bool {
	value, ok := node.FieldValue(f.Field)
	if !ok {
		return false
	}

	switch f.Operator {
	case OperatorEqual:
		return equalValues(value, f.Value)
	case OperatorNotEqual:
		return !equalValues(value, f.Value)
	case OperatorGreater, OperatorGreaterOrEqual, OperatorLess, OperatorLessOrEqual:
		return compareNumbers(value, f.Value, f.Operator)
	case OperatorContains:
		return containsValue(value, f.Value)
	case OperatorNotContains:
		return !containsValue(value, f.Value)
	case OperatorIn:
		return valueIn(value, f.Value)
	case OperatorNotIn:
		return !valueIn(value, f.Value)
	case OperatorStartsWith:
		return strings.HasPrefix(asString(value), asString(f.Value))
	case OperatorMatch:
		matched, err := regexp.MatchString(asString(f.Value), asString(value))
		return err == nil && matched
	}

	return false
}

// MatchesFilters reports whether the node satisfies every filter (AND semantics).
// An empty filter list matches every node.
func MatchesFilters(node *Node, filters []NodeFilter) bool {
	for _, filter := range filters {
		if !filter.Matches(node) {
			return false
		}
	}

	return true
}

// FieldValue resolves a filter field against the node: built-in fields first,
// then custom properties.
func (n *Node) FieldValue(field string) (any, bool) {
	switch field {
	case "uuid":
		return n.UUID, true
	case "title":
		return n.Title, true
	case "mimetype":
		return n.Mimetype, true
	case "parent":
		return n.Parent, true
	case "owner":
		return n.Owner, true
	case "size":
		if n.File != nil {
			return n.File.Size, true
		}

		return nil, false
	}

	if strings.HasPrefix(field, "properties.") {
		field = strings.TrimPrefix(field, "properties.")
	}

	value, ok := n.Properties[field]

	return value, ok
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", v)
}

func asFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case float64:
		return value, true
	case float32:
		return float64(value), true
	}

	return 0, false
}

func equalValues(left, right any) bool {
	if lf, ok := asFloat(left); ok {
		if rf, ok := asFloat(right); ok {
			return lf == rf
		}
	}

	return asString(left) == asString(right)
}

func compareNumbers(left, right any, op FilterOperator) bool {
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)

	if !lok || !rok {
		return false
	}

	switch op {
	case OperatorGreater:
		return lf > rf
	case OperatorGreaterOrEqual:
		return lf >= rf
	case OperatorLess:
		return lf < rf
	case OperatorLessOrEqual:
		return lf <= rf
	default:
		return false
	}
}

func containsValue(haystack, needle any) bool {
	if list, ok := haystack.([]any); ok {
		for _, item := range list {
			if equalValues(item, needle) {
				return true
			}
		}

		return false
	}

	if list, ok := haystack.([]string); ok {
		for _, item := range list {
			if item == asString(needle) {
				return true
			}
		}

		return false
	}

	return strings.Contains(asString(haystack), asString(needle))
}

func valueIn(value, set any) bool {
	if list, ok := set.([]any); ok {
		for _, item := range list {
			if equalValues(value, item) {
				return true
			}
		}
	}

	if list, ok := set.([]string); ok {
		for _, item := range list {
			if asString(value) == item {
				return true
			}
		}
	}

	return false
}
