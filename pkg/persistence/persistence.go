package persistence

import (
	"context"

	"github.com/archonhq/archon/pkg/models"
)

// InstanceRepository is the workflow instance persistence contract. Reads
// return defensive copies: mutating a returned instance never affects stored
// state; the only way to persist a change is Update. Add and Update appear
// atomic per instance to concurrent readers.
type InstanceRepository interface {
	Add(ctx context.Context, instance *models.WorkflowInstance) error
	GetByUUID(ctx context.Context, uuid string) (*models.WorkflowInstance, error)
	GetByNodeUUID(ctx context.Context, nodeUUID string) (*models.WorkflowInstance, error)

	// Update rejects an instance whose Version does not match the stored
	// version with ErrStaleInstance.
	Update(ctx context.Context, instance *models.WorkflowInstance) error
	Delete(ctx context.Context, uuid string) error

	FindByDefinition(ctx context.Context, definitionUUID string) ([]*models.WorkflowInstance, error)
	FindByState(ctx context.Context, definitionUUID, stateName string) ([]*models.WorkflowInstance, error)

	// FindActive returns only running instances; an empty definition uuid
	// means all definitions.
	FindActive(ctx context.Context, definitionUUID string) ([]*models.WorkflowInstance, error)
}

// Persistence is the storage backend handle.
type Persistence interface {
	InstanceRepository() InstanceRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
