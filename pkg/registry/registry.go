// Package registry maps block types to their definitions and capabilities.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"sort"
	"sync"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/protocol"
)

var (
	ErrBlockTypeNotRegistered  = errors.New("block type not registered")
	ErrCapabilityNotRegistered = errors.New("capability not registered")
	ErrUnknownOperation        = errors.New("unknown operation")
)

// Registry is safe for concurrent use; invocations read it from many goroutines.
type Registry struct {
	logger       *slog.Logger
	mu           sync.RWMutex
	definitions  map[string]*models.BlockDefinition
	capabilities map[string]protocol.Capability
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:       log,
		definitions:  make(map[string]*models.BlockDefinition),
		capabilities: make(map[string]protocol.Capability),
	}
}

// LoadBlockPlugins opens every shared object under pluginsPath/blocks and
// looks up its exported Block factory.
func (r *Registry) LoadBlockPlugins(pluginsPath string) ([]protocol.BlockFactory, error) {
	return loadPlugin[protocol.BlockFactory](r.logger, pluginsPath, "Block")
}

// RegisterBlock publishes the factory definition and its capabilities.
// Registering the same type again replaces it.
func (r *Registry) RegisterBlock(factory protocol.BlockFactory) {
	def := factory.Definition()
	if def.Type == "" {
		def.Type = factory.ID()
	}

	if def.Name == "" {
		def.Name = factory.Name()
	}

	if def.Description == "" {
		def.Description = factory.Description()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.definitions[def.Type] = def

	for id, capability := range factory.Capabilities() {
		r.capabilities[id] = capability
	}

	r.logger.Debug("Registered block", "type", def.Type, "capabilities", len(factory.Capabilities()))
}

// RegisterCapability adds or replaces a single capability.
func (r *Registry) RegisterCapability(id string, capability protocol.Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.capabilities[id] = capability
}

// BlockDefinition returns the definition registered for blockType.
func (r *Registry) BlockDefinition(blockType string) (*models.BlockDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.definitions[blockType]

	return def, ok
}

// Definitions returns every registered definition ordered by type.
func (r *Registry) Definitions() []*models.BlockDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*models.BlockDefinition, 0, len(r.definitions))
	for _, def := range r.definitions {
		defs = append(defs, def)
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Type < defs[j].Type })

	return defs
}

// Resolve maps a block type and operation to a registered capability id.
// A named operation must be listed by the definition; otherwise the
// definition's default capability is used, falling back to the type itself.
func (r *Registry) Resolve(blockType, operation string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.definitions[blockType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrBlockTypeNotRegistered, blockType)
	}

	capabilityID := def.Capability

	if operation != "" && len(def.Operations) > 0 {
		id, found := def.Operations[operation]
		if !found {
			return "", fmt.Errorf("%w %q for block type %s", ErrUnknownOperation, operation, blockType)
		}

		capabilityID = id
	}

	if capabilityID == "" {
		capabilityID = blockType
	}

	if _, found := r.capabilities[capabilityID]; !found {
		return "", fmt.Errorf("%w: %s", ErrCapabilityNotRegistered, capabilityID)
	}

	return capabilityID, nil
}

// Call invokes the capability registered under capabilityID.
func (r *Registry) Call(ctx context.Context, capabilityID string, req protocol.CallRequest) (protocol.CallResult, error) {
	r.mu.RLock()
	capability, ok := r.capabilities[capabilityID]
	r.mu.RUnlock()

	if !ok {
		return protocol.CallResult{}, fmt.Errorf("%w: %s", ErrCapabilityNotRegistered, capabilityID)
	}

	return capability.Call(ctx, req)
}

func loadPlugin[T any](logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	rootPath := pluginsPath + "/blocks"
	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", rootPath), slog.String("type", symbolName))
	l.Info("Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))
	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("lookup %s in %s: %w", symbolName, p, err)
		}

		castV, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("plugin %s: symbol %s has unexpected type %T", p, symbolName, v)
		}

		pluginList = append(pluginList, castV)

		l.Info("Loaded block plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
