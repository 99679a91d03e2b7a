package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/archonhq/archon/pkg/models"
	"github.com/archonhq/archon/pkg/persistence"
)

const instancesDir = "instances"

// InstanceRepository stores one JSON document per workflow instance. The
// repository mutex serializes writers so version checks and file writes form
// one atomic step; files are replaced via rename so readers never observe a
// partial write.
type InstanceRepository struct {
	mu   sync.Mutex
	root string
}

func NewInstanceRepository(root string) *InstanceRepository {
	return &InstanceRepository{root: root}
}

func (r *InstanceRepository) Add(_ context.Context, instance *models.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.path(instance.UUID)); err == nil {
		return persistence.NewInstanceError("Add", instance.UUID, persistence.ErrDuplicateInstance)
	}

	stored := instance.Clone()
	if stored.Version <= 0 {
		stored.Version = 1
	}

	if err := r.write(stored); err != nil {
		return persistence.NewInstanceError("Add", instance.UUID, err)
	}

	instance.Version = stored.Version

	return nil
}

func (r *InstanceRepository) GetByUUID(_ context.Context, uuid string) (*models.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.read(uuid)
}

func (r *InstanceRepository) GetByNodeUUID(ctx context.Context, nodeUUID string) (*models.WorkflowInstance, error) {
	instances, err := r.all()
	if err != nil {
		return nil, err
	}

	var latest *models.WorkflowInstance

	for _, instance := range instances {
		if instance.NodeUUID != nodeUUID {
			continue
		}

		// The running instance wins; otherwise the most recently modified.
		if instance.Running {
			return instance, nil
		}

		if latest == nil || instance.ModifiedAt.After(latest.ModifiedAt) {
			latest = instance
		}
	}

	if latest == nil {
		return nil, persistence.ErrInstanceNotFound
	}

	return latest, nil
}

func (r *InstanceRepository) Update(_ context.Context, instance *models.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.read(instance.UUID)
	if err != nil {
		return persistence.NewInstanceError("Update", instance.UUID, persistence.ErrInstanceNotFound)
	}

	if stored.Version != instance.Version {
		return persistence.NewInstanceError("Update", instance.UUID, persistence.ErrStaleInstance)
	}

	next := instance.Clone()
	next.Version = stored.Version + 1

	if err := r.write(next); err != nil {
		return persistence.NewInstanceError("Update", instance.UUID, err)
	}

	instance.Version = next.Version

	return nil
}

func (r *InstanceRepository) Delete(_ context.Context, uuid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.path(uuid)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return persistence.NewInstanceError("Delete", uuid, persistence.ErrInstanceNotFound)
	}

	if err := os.Remove(path); err != nil {
		return persistence.NewInstanceError("Delete", uuid, err)
	}

	return nil
}

func (r *InstanceRepository) FindByDefinition(_ context.Context, definitionUUID string) ([]*models.WorkflowInstance, error) {
	return r.filter(func(i *models.WorkflowInstance) bool {
		return i.DefinitionUUID == definitionUUID
	})
}

func (r *InstanceRepository) FindByState(_ context.Context, definitionUUID, stateName string) ([]*models.WorkflowInstance, error) {
	return r.filter(func(i *models.WorkflowInstance) bool {
		return i.DefinitionUUID == definitionUUID && i.CurrentState == stateName
	})
}

func (r *InstanceRepository) FindActive(_ context.Context, definitionUUID string) ([]*models.WorkflowInstance, error) {
	return r.filter(func(i *models.WorkflowInstance) bool {
		if !i.Running {
			return false
		}

		return definitionUUID == "" || i.DefinitionUUID == definitionUUID
	})
}

func (r *InstanceRepository) path(uuid string) string {
	return filepath.Join(r.root, instancesDir, uuid+".json")
}

func (r *InstanceRepository) read(uuid string) (*models.WorkflowInstance, error) {
	data, err := os.ReadFile(r.path(uuid))
	if os.IsNotExist(err) {
		return nil, persistence.ErrInstanceNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read instance file: %w", err)
	}

	var instance models.WorkflowInstance
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("failed to decode instance %s: %w", uuid, err)
	}

	return &instance, nil
}

func (r *InstanceRepository) write(instance *models.WorkflowInstance) error {
	dir := filepath.Join(r.root, instancesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create instances directory: %w", err)
	}

	data, err := json.MarshalIndent(instance, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode instance: %w", err)
	}

	tmp := r.path(instance.UUID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write instance file: %w", err)
	}

	return os.Rename(tmp, r.path(instance.UUID))
}

func (r *InstanceRepository) all() ([]*models.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	root := os.DirFS(filepath.Join(r.root, instancesDir))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list instance files: %w", err)
	}

	instances := make([]*models.WorkflowInstance, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		uuid := file[:len(file)-len(".json")]

		instance, err := r.read(uuid)
		if err != nil {
			return nil, err
		}

		instances = append(instances, instance)
	}

	sort.Slice(instances, func(i, j int) bool {
		return instances[i].UUID < instances[j].UUID
	})

	return instances, nil
}

func (r *InstanceRepository) filter(keep func(*models.WorkflowInstance) bool) ([]*models.WorkflowInstance, error) {
	instances, err := r.all()
	if err != nil {
		return nil, err
	}

	matched := make([]*models.WorkflowInstance, 0)

	for _, instance := range instances {
		if keep(instance) {
			matched = append(matched, instance)
		}
	}

	return matched, nil
}
