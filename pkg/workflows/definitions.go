package workflows

import (
	"context"
	"sync"

	"github.com/archonhq/archon/pkg/models"
)

// DefinitionSource reads workflow definitions by uuid. Definitions live as
// content-addressed documents in the generic document repository; the engine
// only reads them.
type DefinitionSource interface {
	GetDefinition(ctx context.Context, uuid string) (models.WorkflowDefinition, error)
}

// MemoryDefinitions is an in-memory definition source.
type MemoryDefinitions struct {
	mu          sync.RWMutex
	definitions map[string]models.WorkflowDefinition
}

func NewMemoryDefinitions() *MemoryDefinitions {
	return &MemoryDefinitions{definitions: make(map[string]models.WorkflowDefinition)}
}

// Put validates and stores a definition.
func (s *MemoryDefinitions) Put(definition models.WorkflowDefinition) error {
	if err := definition.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.definitions[definition.UUID] = definition.Clone()

	return nil
}

func (s *MemoryDefinitions) GetDefinition(_ context.Context, uuid string) (models.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	definition, ok := s.definitions[uuid]
	if !ok {
		return models.WorkflowDefinition{}, ErrDefinitionNotFound
	}

	return definition.Clone(), nil
}
