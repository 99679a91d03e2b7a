package nodes

import (
	"context"

	"github.com/archonhq/archon/pkg/models"
)

// Service is the node read/write/lock contract. Storage backends live
// outside the engine; the engines only depend on this interface.
type Service interface {
	Get(ctx context.Context, uuid string) (*models.Node, error)
	Create(ctx context.Context, node *models.Node) error
	Update(ctx context.Context, uuid string, patch models.NodePatch) (*models.Node, error)
	UpdateFile(ctx context.Context, uuid string, file models.FileAttributes) (*models.Node, error)
	Delete(ctx context.Context, uuid string) error
	Find(ctx context.Context, filters []models.NodeFilter) ([]*models.Node, error)

	// Lock and Unlock are the engine's mutual exclusion primitive. Unlock
	// only succeeds with the token that acquired the lock.
	Lock(ctx context.Context, uuid, ownerToken string) error
	Unlock(ctx context.Context, uuid, ownerToken string) error
}
