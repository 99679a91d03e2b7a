package cmd

import (
	"log/slog"

	"github.com/archonhq/archon/pkg/registry"
)

// NewRegistry creates the runnable registry and loads feature plugins from
// the given path. Native feature bodies are registered by the embedding
// application after construction.
func NewRegistry(log *slog.Logger, pluginsPath string) *registry.Registry {
	reg := registry.NewRegistry(log)

	if pluginsPath != "" {
		if _, err := reg.LoadFeaturePlugins(pluginsPath); err != nil {
			log.Warn("Failed to load feature plugins", "path", pluginsPath, "error", err)
		}
	}

	return reg
}
