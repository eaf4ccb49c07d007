package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

// Ensure ResourceStore implements the interface.
var _ driven.ResourceStore = (*ResourceStore)(nil)

// ResourceStore is an in-memory implementation of driven.ResourceStore.
type ResourceStore struct {
	mu        sync.RWMutex
	resources map[string]domain.Resource
}

// NewResourceStore creates a new in-memory resource store.
func NewResourceStore(resources ...domain.Resource) *ResourceStore {
	s := &ResourceStore{
		resources: make(map[string]domain.Resource, len(resources)),
	}
	for _, r := range resources {
		s.resources[r.Name] = r
	}
	return s
}

// Put stores or replaces a resource.
func (s *ResourceStore) Put(resource domain.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[resource.Name] = resource
}

// Get retrieves a resource by name.
func (s *ResourceStore) Get(_ context.Context, name string) (*domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resource, ok := s.resources[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &resource, nil
}

// List returns all resources in name order.
func (s *ResourceStore) List(_ context.Context) ([]domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Resource, 0, len(s.resources))
	for _, resource := range s.resources {
		result = append(result, resource)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}
