// Package registry maps feature ids to the factories that build their
// executable bodies, whether registered natively or loaded as Go plugins.
package registry

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"strings"

	"github.com/archonhq/archon/pkg/models"
)

type Registry struct {
	logger    *slog.Logger
	factories map[string]RunnableFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}

	return &Registry{
		logger:    log,
		factories: make(map[string]RunnableFactory),
	}
}

func (r *Registry) Register(factory RunnableFactory) {
	r.factories[factory.ID()] = factory
}

// RegisterFunc registers a native function body under the given feature id.
func (r *Registry) RegisterFunc(featureID string, fn RunnableFunc) {
	r.factories[featureID] = funcFactory{id: featureID, fn: fn}
}

// CreateRunnable builds the runnable for a feature definition.
func (r *Registry) CreateRunnable(feature models.Feature) (Runnable, error) {
	factory, ok := r.factories[feature.ID]
	if !ok {
		return nil, fmt.Errorf("no runnable registered for feature '%s'", feature.ID)
	}

	return factory.Create(feature)
}

// Has reports whether a runnable body is registered for the feature id.
func (r *Registry) Has(featureID string) bool {
	_, ok := r.factories[featureID]

	return ok
}

// LoadFeaturePlugins loads runnable factories from .so files under
// <pluginsPath>/features and registers them.
func (r *Registry) LoadFeaturePlugins(pluginsPath string) ([]RunnableFactory, error) {
	factories, err := loadPlugin[RunnableFactory](r.logger, pluginsPath, "Feature")
	if err != nil {
		return nil, err
	}

	for _, factory := range factories {
		r.Register(factory)
	}

	return factories, nil
}

type funcFactory struct {
	id string
	fn RunnableFunc
}

func (f funcFactory) ID() string {
	return f.id
}

func (f funcFactory) Create(models.Feature) (Runnable, error) {
	return f.fn, nil
}

func loadPlugin[T interface{}](logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	rootPath := pluginsPath + "/" + strings.ToLower(symbolName) + "s"
	root := os.DirFS(rootPath)
	pluginPathList, err := fs.Glob(root, "**/*.so")

	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", pluginsPath), slog.String("type", symbolName))
	l.Info("Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))
	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("plugin %s has no %s symbol: %w", p, symbolName, err)
		}

		castV, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("plugin %s: %s symbol has wrong type", p, symbolName)
		}

		pluginList = append(pluginList, castV)

		l.Info("Loaded feature plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
