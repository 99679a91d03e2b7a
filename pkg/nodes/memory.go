package nodes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/archonhq/archon/pkg/locks"
	"github.com/archonhq/archon/pkg/models"
)

// MemoryService is an in-memory node collaborator, used by tests and local
// development the way the file persistence backend is used for workflows.
type MemoryService struct {
	mu    sync.RWMutex
	nodes map[string]*models.Node
	locks locks.Store
}

func NewMemoryService(lockStore locks.Store) *MemoryService {
	if lockStore == nil {
		lockStore = locks.NewMemoryStore()
	}

	return &MemoryService{
		nodes: make(map[string]*models.Node),
		locks: lockStore,
	}
}

func (s *MemoryService) Get(_ context.Context, uuid string) (*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[uuid]
	if !ok {
		return nil, ErrNodeNotFound
	}

	return node.Clone(), nil
}

func (s *MemoryService) Create(_ context.Context, node *models.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	stored := node.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}

	stored.UpdatedAt = now
	s.nodes[node.UUID] = stored

	return nil
}

func (s *MemoryService) Update(_ context.Context, uuid string, patch models.NodePatch) (*models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[uuid]
	if !ok {
		return nil, ErrNodeNotFound
	}

	if patch.Title != nil {
		node.Title = *patch.Title
	}

	if patch.Properties != nil {
		if node.Properties == nil {
			node.Properties = make(map[string]any, len(patch.Properties))
		}

		for key, value := range patch.Properties {
			node.Properties[key] = value
		}
	}

	node.UpdatedAt = time.Now().UTC()

	return node.Clone(), nil
}

func (s *MemoryService) UpdateFile(_ context.Context, uuid string, file models.FileAttributes) (*models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[uuid]
	if !ok {
		return nil, ErrNodeNotFound
	}

	if node.IsFolder() {
		return nil, ErrNotAFile
	}

	attrs := file
	node.File = &attrs
	node.UpdatedAt = time.Now().UTC()

	return node.Clone(), nil
}

func (s *MemoryService) Delete(_ context.Context, uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[uuid]; !ok {
		return ErrNodeNotFound
	}

	delete(s.nodes, uuid)

	return nil
}

func (s *MemoryService) Find(_ context.Context, filters []models.NodeFilter) ([]*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]*models.Node, 0)

	for _, node := range s.nodes {
		if models.MatchesFilters(node, filters) {
			matches = append(matches, node.Clone())
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].UUID < matches[j].UUID
	})

	return matches, nil
}

func (s *MemoryService) Lock(ctx context.Context, uuid, ownerToken string) error {
	s.mu.RLock()
	_, ok := s.nodes[uuid]
	s.mu.RUnlock()

	if !ok {
		return ErrNodeNotFound
	}

	return s.locks.Acquire(ctx, uuid, ownerToken)
}

func (s *MemoryService) Unlock(ctx context.Context, uuid, ownerToken string) error {
	return s.locks.Release(ctx, uuid, ownerToken)
}
