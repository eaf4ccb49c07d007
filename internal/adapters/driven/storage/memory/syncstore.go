package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

// Ensure SyncTokenStore implements the interface.
var _ driven.SyncTokenStore = (*SyncTokenStore)(nil)

// SyncTokenStore is an in-memory implementation of driven.SyncTokenStore.
type SyncTokenStore struct {
	mu      sync.RWMutex
	states  map[string]domain.SyncState
	saveErr error
}

// NewSyncTokenStore creates a new in-memory sync token store.
func NewSyncTokenStore() *SyncTokenStore {
	return &SyncTokenStore{
		states: make(map[string]domain.SyncState),
	}
}

// FailSaves makes every subsequent Save return err. Nil restores saving.
func (s *SyncTokenStore) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// Save stores or updates sync state.
func (s *SyncTokenStore) Save(_ context.Context, state domain.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if state.Token != nil {
		tok := *state.Token
		state.Token = &tok
	}
	s.states[state.Resource] = state
	return nil
}

// Get retrieves sync state for a resource.
func (s *SyncTokenStore) Get(_ context.Context, resource string) (*domain.SyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[resource]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &state, nil
}

// Delete removes sync state for a resource.
func (s *SyncTokenStore) Delete(_ context.Context, resource string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, resource)
	return nil
}
