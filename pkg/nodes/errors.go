// Package nodes defines the node collaborator contract consumed by the
// workflow and feature engines, plus an in-memory implementation.
package nodes

import (
	"errors"

	"github.com/archonhq/archon/pkg/locks"
)

// Standard node collaborator error types that all implementations should use.
var (
	// ErrNodeNotFound indicates a node was not found by the given uuid.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNodeAlreadyLocked indicates the node is locked by a different owner.
	ErrNodeAlreadyLocked = locks.ErrAlreadyLocked

	// ErrNotLockOwner indicates an unlock with a token that does not own
	// the lock.
	ErrNotLockOwner = locks.ErrNotOwner

	// ErrNotAFile indicates a file operation on a node without the file
	// capability.
	ErrNotAFile = errors.New("node is not a file")
)

// IsNodeNotFound checks if an error indicates a node was not found.
func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

// IsNodeLocked checks if an error indicates a lock conflict.
func IsNodeLocked(err error) bool {
	return errors.Is(err, ErrNodeAlreadyLocked)
}
