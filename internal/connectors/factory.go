package connectors

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/idsync/internal/connectors/csvfile"
	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.ConnectorFactory = (*Factory)(nil)

// Factory creates connectors from resource configuration.
type Factory struct {
	mu       sync.RWMutex
	builders map[string]driven.ConnectorBuilder
}

// NewFactory creates an empty connector factory.
func NewFactory() *Factory {
	return &Factory{builders: make(map[string]driven.ConnectorBuilder)}
}

// NewDefaultFactory creates a factory with every built-in connector registered.
func NewDefaultFactory() *Factory {
	f := NewFactory()
	f.Register(csvfile.Name, csvfile.Builder)
	return f
}

// Register adds a connector builder for the given type, replacing any
// existing one.
func (f *Factory) Register(connectorType string, builder driven.ConnectorBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[connectorType] = builder
}

// Create returns a Connector for the given resource.
func (f *Factory) Create(ctx context.Context, resource domain.Resource) (driven.Connector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	builder, ok := f.builders[resource.ConnectorType]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: connector %q", domain.ErrUnsupportedType, resource.ConnectorType)
	}
	return builder(resource)
}

// SupportedTypes returns all registered connector types in name order.
func (f *Factory) SupportedTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
