// Package features resolves, authorizes and executes features: the pluggable
// units of logic exposed as actions, extensions and AI tools.
package features

import (
	"errors"
	"fmt"
)

// Standard feature engine error types.
var (
	// ErrFeatureNotFound indicates no feature exists for the given id.
	ErrFeatureNotFound = errors.New("feature not found")

	// ErrFeatureAlreadyExists indicates a feature with the same id exists.
	ErrFeatureAlreadyExists = errors.New("feature already exists")

	// ErrFeatureNotExposed indicates the feature is not exposed on the
	// invoked route (action, extension or AI tool).
	ErrFeatureNotExposed = errors.New("feature not exposed for this route")

	// ErrPermissionDenied indicates the caller clears none of the feature's
	// allowed groups.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidParameters indicates a missing required parameter or a type
	// mismatch.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrFeatureTimeout indicates the feature body exceeded the engine's
	// execution deadline.
	ErrFeatureTimeout = errors.New("feature execution timed out")

	// ErrFilterMismatch indicates the target node does not satisfy the
	// feature's eligibility filters.
	ErrFilterMismatch = errors.New("node does not match feature filters")
)

// ExecutionError wraps whatever a feature body raised, preserving the
// underlying error for callers that need its kind.
type ExecutionError struct {
	FeatureID string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("feature %s execution failed: %v", e.FeatureID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsFeatureNotFound checks if an error indicates a missing feature.
func IsFeatureNotFound(err error) bool {
	return errors.Is(err, ErrFeatureNotFound)
}

// IsPermissionDenied checks if an error indicates a group mismatch.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsInvalidParameters checks if an error indicates bad parameters.
func IsInvalidParameters(err error) bool {
	return errors.Is(err, ErrInvalidParameters)
}

// IsTimeout checks if an error indicates an exceeded execution deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrFeatureTimeout)
}
