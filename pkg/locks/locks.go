// Package locks provides the exclusive node lock stores used by the workflow
// engine. A lock is owned by a token; only the same token can release it.
package locks

import (
	"context"
	"errors"
)

var (
	// ErrAlreadyLocked indicates the node is locked by a different owner.
	ErrAlreadyLocked = errors.New("node already locked")

	// ErrNotOwner indicates an unlock attempt with a token that does not
	// own the lock.
	ErrNotOwner = errors.New("lock not owned by caller")
)

// Store is the exclusive lock contract. Acquire is atomic per key: of two
// concurrent acquirers exactly one wins.
type Store interface {
	Acquire(ctx context.Context, key, ownerToken string) error
	Release(ctx context.Context, key, ownerToken string) error
	Owner(ctx context.Context, key string) (string, bool, error)
}
