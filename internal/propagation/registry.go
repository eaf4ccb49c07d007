package propagation

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

// Registry maps propagation target types to their builders.
// It allows dynamic construction of targets from resource configuration.
type Registry struct {
	builders map[string]driven.PropagationTargetBuilder
}

// NewRegistry creates a new target registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]driven.PropagationTargetBuilder),
	}
}

// Register adds a target builder to the registry.
// Name should be unique and match the target's Name() return value.
func (r *Registry) Register(name string, builder driven.PropagationTargetBuilder) {
	r.builders[name] = builder
}

// Build creates the target configured for a resource.
// Returns ErrUnsupportedType if the target type is not registered.
func (r *Registry) Build(resource domain.Resource) (driven.PropagationTarget, error) {
	builder, ok := r.builders[resource.PropagationTarget]
	if !ok {
		return nil, fmt.Errorf("%w: propagation target %q", domain.ErrUnsupportedType, resource.PropagationTarget)
	}
	return builder(resource)
}

// Has returns true if a target with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.builders[name]
	return ok
}

// Names returns all registered target names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
