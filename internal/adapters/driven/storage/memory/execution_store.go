package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

// Ensure ExecutionStore implements the interface.
var _ driven.ExecutionStore = (*ExecutionStore)(nil)

// ExecutionStore is an in-memory implementation of driven.ExecutionStore.
type ExecutionStore struct {
	mu         sync.RWMutex
	executions []domain.Execution
}

// NewExecutionStore creates a new in-memory execution store.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{}
}

// Save records a finished run.
func (s *ExecutionStore) Save(_ context.Context, exec domain.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions = append(s.executions, exec)
	return nil
}

// List returns recent runs, most recent first.
func (s *ExecutionStore) List(_ context.Context, resource string, limit int) ([]domain.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Execution
	for _, e := range s.executions {
		if resource == "" || e.Resource == resource {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Prune keeps the most recent 'keep' runs per resource.
func (s *ExecutionStore) Prune(_ context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sort.SliceStable(s.executions, func(i, j int) bool {
		return s.executions[i].StartedAt.After(s.executions[j].StartedAt)
	})
	counts := make(map[string]int)
	kept := s.executions[:0]
	for _, e := range s.executions {
		if counts[e.Resource] < keep {
			kept = append(kept, e)
		}
		counts[e.Resource]++
	}
	s.executions = kept
	return nil
}
