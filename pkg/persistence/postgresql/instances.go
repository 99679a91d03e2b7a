package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/archonhq/archon/pkg/models"
	"github.com/archonhq/archon/pkg/persistence"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// InstanceRepository persists workflow instances as JSONB documents with
// denormalized columns for querying. Update uses a version-guarded UPDATE so
// concurrent writers lose with ErrStaleInstance instead of clobbering.
type InstanceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewInstanceRepository(db *sql.DB, logger *slog.Logger) *InstanceRepository {
	return &InstanceRepository{db: db, logger: logger}
}

func (r *InstanceRepository) Add(ctx context.Context, instance *models.WorkflowInstance) error {
	stored := instance.Clone()
	if stored.Version <= 0 {
		stored.Version = 1
	}

	document, err := json.Marshal(stored)
	if err != nil {
		return persistence.NewInstanceError("Add", instance.UUID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_instances
			(uuid, definition_uuid, node_uuid, current_state, running, cancelled, version, document, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, stored.UUID, stored.DefinitionUUID, stored.NodeUUID, stored.CurrentState,
		stored.Running, stored.Cancelled, stored.Version, document, stored.CreatedAt, stored.ModifiedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewInstanceError("Add", instance.UUID, persistence.ErrDuplicateInstance)
		}

		return persistence.NewInstanceError("Add", instance.UUID, err)
	}

	instance.Version = stored.Version

	return nil
}

func (r *InstanceRepository) GetByUUID(ctx context.Context, uuid string) (*models.WorkflowInstance, error) {
	return r.queryOne(ctx, "SELECT document, version FROM workflow_instances WHERE uuid = $1", uuid)
}

func (r *InstanceRepository) GetByNodeUUID(ctx context.Context, nodeUUID string) (*models.WorkflowInstance, error) {
	return r.queryOne(ctx, `
		SELECT document, version FROM workflow_instances
		WHERE node_uuid = $1
		ORDER BY running DESC, modified_at DESC
		LIMIT 1
	`, nodeUUID)
}

func (r *InstanceRepository) Update(ctx context.Context, instance *models.WorkflowInstance) error {
	next := instance.Clone()
	next.Version = instance.Version + 1

	document, err := json.Marshal(next)
	if err != nil {
		return persistence.NewInstanceError("Update", instance.UUID, err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_instances
		SET current_state = $1, running = $2, cancelled = $3, version = $4, document = $5, modified_at = $6
		WHERE uuid = $7 AND version = $8
	`, next.CurrentState, next.Running, next.Cancelled, next.Version, document,
		next.ModifiedAt, next.UUID, instance.Version)
	if err != nil {
		return persistence.NewInstanceError("Update", instance.UUID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewInstanceError("Update", instance.UUID, err)
	}

	if affected == 0 {
		exists, err := r.exists(ctx, instance.UUID)
		if err != nil {
			return persistence.NewInstanceError("Update", instance.UUID, err)
		}

		if !exists {
			return persistence.NewInstanceError("Update", instance.UUID, persistence.ErrInstanceNotFound)
		}

		return persistence.NewInstanceError("Update", instance.UUID, persistence.ErrStaleInstance)
	}

	instance.Version = next.Version

	return nil
}

func (r *InstanceRepository) Delete(ctx context.Context, uuid string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflow_instances WHERE uuid = $1", uuid)
	if err != nil {
		return persistence.NewInstanceError("Delete", uuid, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewInstanceError("Delete", uuid, err)
	}

	if affected == 0 {
		return persistence.NewInstanceError("Delete", uuid, persistence.ErrInstanceNotFound)
	}

	return nil
}

func (r *InstanceRepository) FindByDefinition(ctx context.Context, definitionUUID string) ([]*models.WorkflowInstance, error) {
	return r.queryMany(ctx, `
		SELECT document, version FROM workflow_instances
		WHERE definition_uuid = $1 ORDER BY uuid
	`, definitionUUID)
}

func (r *InstanceRepository) FindByState(ctx context.Context, definitionUUID, stateName string) ([]*models.WorkflowInstance, error) {
	return r.queryMany(ctx, `
		SELECT document, version FROM workflow_instances
		WHERE definition_uuid = $1 AND current_state = $2 ORDER BY uuid
	`, definitionUUID, stateName)
}

func (r *InstanceRepository) FindActive(ctx context.Context, definitionUUID string) ([]*models.WorkflowInstance, error) {
	if definitionUUID == "" {
		return r.queryMany(ctx, "SELECT document, version FROM workflow_instances WHERE running ORDER BY uuid")
	}

	return r.queryMany(ctx, `
		SELECT document, version FROM workflow_instances
		WHERE running AND definition_uuid = $1 ORDER BY uuid
	`, definitionUUID)
}

func (r *InstanceRepository) exists(ctx context.Context, uuid string) (bool, error) {
	var found bool

	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM workflow_instances WHERE uuid = $1)", uuid).Scan(&found)

	return found, err
}

func (r *InstanceRepository) queryOne(ctx context.Context, query string, args ...any) (*models.WorkflowInstance, error) {
	var (
		document []byte
		version  int
	)

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&document, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrInstanceNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query instance: %w", err)
	}

	return decodeInstance(document, version)
}

func (r *InstanceRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.WorkflowInstance, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()

	instances := make([]*models.WorkflowInstance, 0)

	for rows.Next() {
		var (
			document []byte
			version  int
		)

		if err := rows.Scan(&document, &version); err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}

		instance, err := decodeInstance(document, version)
		if err != nil {
			return nil, err
		}

		instances = append(instances, instance)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read instances: %w", err)
	}

	return instances, nil
}

func decodeInstance(document []byte, version int) (*models.WorkflowInstance, error) {
	var instance models.WorkflowInstance
	if err := json.Unmarshal(document, &instance); err != nil {
		return nil, fmt.Errorf("failed to decode instance document: %w", err)
	}

	instance.Version = version

	return &instance, nil
}
