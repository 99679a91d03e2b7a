// Package workflows drives workflow instances through their definition's
// state graph: validating signals, locking nodes, invoking hook features,
// recording history and emitting audit events.
package workflows

import (
	"errors"

	"github.com/archonhq/archon/pkg/features"
	"github.com/archonhq/archon/pkg/locks"
	"github.com/archonhq/archon/pkg/persistence"
)

// Engine error types. Persistence-level kinds are re-exported so callers
// only need this package.
var (
	ErrInstanceNotFound  = persistence.ErrInstanceNotFound
	ErrDuplicateInstance = persistence.ErrDuplicateInstance
	ErrStaleInstance     = persistence.ErrStaleInstance
	ErrNodeLocked        = locks.ErrAlreadyLocked
	ErrPermissionDenied  = features.ErrPermissionDenied

	// ErrDefinitionNotFound indicates no workflow definition exists for
	// the given uuid.
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrNodeFilterMismatch indicates the node is not eligible for the
	// workflow definition.
	ErrNodeFilterMismatch = errors.New("node does not match workflow filters")

	// ErrWorkflowNotRunning indicates an operation on a terminal instance.
	ErrWorkflowNotRunning = errors.New("workflow instance is not running")

	// ErrWorkflowStillRunning indicates a delete on a running instance.
	ErrWorkflowStillRunning = errors.New("workflow instance is still running")

	// ErrAlreadyCancelled indicates a cancel on a cancelled instance.
	ErrAlreadyCancelled = errors.New("workflow instance already cancelled")

	// ErrInvalidSignal indicates no transition is defined for the current
	// state and signal.
	ErrInvalidSignal = errors.New("no transition defined for signal")

	// ErrNodeNotGoverned indicates a node update through an instance that
	// does not govern that node.
	ErrNodeNotGoverned = errors.New("node is not governed by this workflow instance")
)

// IsInvalidSignal checks if an error indicates an undefined transition.
func IsInvalidSignal(err error) bool {
	return errors.Is(err, ErrInvalidSignal)
}

// IsWorkflowNotRunning checks if an error indicates a terminal instance.
func IsWorkflowNotRunning(err error) bool {
	return errors.Is(err, ErrWorkflowNotRunning)
}
