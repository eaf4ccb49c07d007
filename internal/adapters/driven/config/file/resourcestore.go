package file

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

// Ensure ResourceStore implements the interface.
var _ driven.ResourceStore = (*ResourceStore)(nil)

// ResourceStore serves resource definitions from a loaded configuration.
type ResourceStore struct {
	resources map[string]domain.Resource
}

// NewResourceStore converts every resource of cfg.
func NewResourceStore(cfg *Config) (*ResourceStore, error) {
	s := &ResourceStore{resources: make(map[string]domain.Resource, len(cfg.Resources))}
	for i := range cfg.Resources {
		res, err := cfg.Resources[i].ToDomain()
		if err != nil {
			return nil, err
		}
		s.resources[res.Name] = res
	}
	return s, nil
}

// Get returns a resource by name.
func (s *ResourceStore) Get(_ context.Context, name string) (*domain.Resource, error) {
	res, ok := s.resources[name]
	if !ok {
		return nil, fmt.Errorf("resource %q: %w", name, domain.ErrNotFound)
	}
	return &res, nil
}

// List returns every resource ordered by name.
func (s *ResourceStore) List(_ context.Context) ([]domain.Resource, error) {
	out := make([]domain.Resource, 0, len(s.resources))
	for _, res := range s.resources {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
