package features

import (
	"context"
	"sort"
	"sync"

	"github.com/archonhq/archon/pkg/models"
)

// Repository stores feature definitions by id.
type Repository interface {
	Add(ctx context.Context, feature models.Feature) error
	GetByID(ctx context.Context, id string) (models.Feature, error)
	Update(ctx context.Context, feature models.Feature) error
	Delete(ctx context.Context, id string) error
	All(ctx context.Context) ([]models.Feature, error)

	// FindByTrigger returns the features whose trigger flag matches the
	// event kind, in ascending id order so trigger dispatch is reproducible.
	FindByTrigger(ctx context.Context, kind models.NodeEventKind) ([]models.Feature, error)

	// FindScheduled returns the features carrying a cron expression.
	FindScheduled(ctx context.Context) ([]models.Feature, error)
}

// MemoryRepository is an in-memory feature repository.
type MemoryRepository struct {
	mu       sync.RWMutex
	features map[string]models.Feature
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{features: make(map[string]models.Feature)}
}

func (r *MemoryRepository) Add(_ context.Context, feature models.Feature) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.features[feature.ID]; ok {
		return ErrFeatureAlreadyExists
	}

	r.features[feature.ID] = feature

	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (models.Feature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	feature, ok := r.features[id]
	if !ok {
		return models.Feature{}, ErrFeatureNotFound
	}

	return feature, nil
}

func (r *MemoryRepository) Update(_ context.Context, feature models.Feature) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.features[feature.ID]; !ok {
		return ErrFeatureNotFound
	}

	r.features[feature.ID] = feature

	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.features[id]; !ok {
		return ErrFeatureNotFound
	}

	delete(r.features, id)

	return nil
}

func (r *MemoryRepository) All(_ context.Context) ([]models.Feature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sorted(func(models.Feature) bool { return true }), nil
}

func (r *MemoryRepository) FindByTrigger(_ context.Context, kind models.NodeEventKind) ([]models.Feature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sorted(func(f models.Feature) bool { return f.TriggersOn(kind) }), nil
}

func (r *MemoryRepository) FindScheduled(_ context.Context) ([]models.Feature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sorted(func(f models.Feature) bool { return f.RunOnSchedule != "" }), nil
}

func (r *MemoryRepository) sorted(keep func(models.Feature) bool) []models.Feature {
	out := make([]models.Feature, 0, len(r.features))

	for _, feature := range r.features {
		if keep(feature) {
			out = append(out, feature)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}
