// Package persistence provides the storage abstraction and standardized
// error types for workflow instance repositories.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrInstanceNotFound indicates a workflow instance was not found by
	// the given identifier.
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrDuplicateInstance indicates an instance with the same uuid, or a
	// running instance for the same node, already exists.
	ErrDuplicateInstance = errors.New("workflow instance already exists")

	// ErrStaleInstance indicates an update carried a version older than the
	// stored one; the caller lost a concurrent-update race.
	ErrStaleInstance = errors.New("workflow instance version is stale")
)

// InstanceError wraps instance-related errors with operation context.
type InstanceError struct {
	Op           string // Operation being performed (e.g., "Add", "Update", "Delete")
	InstanceUUID string
	Err          error
}

func (e *InstanceError) Error() string {
	return fmt.Sprintf("%s operation failed for instance %s: %v", e.Op, e.InstanceUUID, e.Err)
}

func (e *InstanceError) Unwrap() error {
	return e.Err
}

func (e *InstanceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewInstanceError creates a new instance error with context.
func NewInstanceError(op, instanceUUID string, err error) *InstanceError {
	return &InstanceError{Op: op, InstanceUUID: instanceUUID, Err: err}
}

// IsInstanceNotFound checks if an error indicates a missing instance.
func IsInstanceNotFound(err error) bool {
	return errors.Is(err, ErrInstanceNotFound)
}

// IsDuplicateInstance checks if an error indicates a duplicate instance.
func IsDuplicateInstance(err error) bool {
	return errors.Is(err, ErrDuplicateInstance)
}

// IsStaleInstance checks if an error indicates a lost update race.
func IsStaleInstance(err error) bool {
	return errors.Is(err, ErrStaleInstance)
}
