package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/archonhq/archon/pkg/features"
	"github.com/archonhq/archon/pkg/models"
	"github.com/archonhq/archon/pkg/workflows"
)

// LoadFeatures reads feature definitions from JSON files under
// <catalogPath>/features and registers them in a feature repository.
// A missing directory yields an empty repository.
func LoadFeatures(ctx context.Context, catalogPath string) (*features.MemoryRepository, error) {
	repository := features.NewMemoryRepository()

	err := eachJSONFile(filepath.Join(catalogPath, "features"), func(path string, data []byte) error {
		var feature models.Feature
		if err := json.Unmarshal(data, &feature); err != nil {
			return fmt.Errorf("failed to parse feature %s: %w", path, err)
		}

		return repository.Add(ctx, feature)
	})
	if err != nil {
		return nil, err
	}

	return repository, nil
}

// LoadDefinitions reads workflow definitions from JSON files under
// <catalogPath>/workflows. Invalid definitions fail the load.
func LoadDefinitions(catalogPath string) (*workflows.MemoryDefinitions, error) {
	definitions := workflows.NewMemoryDefinitions()

	err := eachJSONFile(filepath.Join(catalogPath, "workflows"), func(path string, data []byte) error {
		var definition models.WorkflowDefinition
		if err := json.Unmarshal(data, &definition); err != nil {
			return fmt.Errorf("failed to parse workflow definition %s: %w", path, err)
		}

		if err := definitions.Put(definition); err != nil {
			return fmt.Errorf("invalid workflow definition %s: %w", path, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return definitions, nil
}

func eachJSONFile(dir string, fn func(path string, data []byte) error) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to read catalog directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		if err := fn(path, data); err != nil {
			return err
		}
	}

	return nil
}
