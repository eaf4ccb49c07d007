package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

// Ensure the task stores implement the interfaces.
var (
	_ driven.PropagationTaskStore = (*PropagationTaskStore)(nil)
	_ driven.NotificationSink     = (*NotificationSink)(nil)
)

// PropagationTaskStore is an in-memory implementation of driven.PropagationTaskStore.
type PropagationTaskStore struct {
	mu    sync.RWMutex
	tasks []domain.PropagationTask
}

// NewPropagationTaskStore creates a new in-memory propagation task store.
func NewPropagationTaskStore() *PropagationTaskStore {
	return &PropagationTaskStore{}
}

// Record stores a task.
func (s *PropagationTaskStore) Record(_ context.Context, task domain.PropagationTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	s.tasks = append(s.tasks, task)
	return nil
}

// List returns recent tasks for a resource, most recent first.
func (s *PropagationTaskStore) List(_ context.Context, resource string, limit int) ([]domain.PropagationTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PropagationTask
	for i := len(s.tasks) - 1; i >= 0; i-- {
		if resource == "" || s.tasks[i].Resource == resource {
			out = append(out, s.tasks[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// NotificationSink is an in-memory implementation of driven.NotificationSink.
type NotificationSink struct {
	mu    sync.RWMutex
	tasks []domain.NotificationTask
	err   error
}

// NewNotificationSink creates a new in-memory notification sink.
func NewNotificationSink() *NotificationSink {
	return &NotificationSink{}
}

// FailWith makes every subsequent CreateTasks return err.
func (s *NotificationSink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// CreateTasks records one task per event.
func (s *NotificationSink) CreateTasks(_ context.Context, rc domain.RunContext, identityKey string, events []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	now := time.Now()
	for _, event := range events {
		s.tasks = append(s.tasks, domain.NotificationTask{
			ID:          uuid.NewString(),
			RunID:       rc.RunID,
			IdentityKey: identityKey,
			Event:       event,
			CreatedAt:   now,
		})
	}
	return nil
}

// Tasks returns every recorded task in creation order.
func (s *NotificationSink) Tasks() []domain.NotificationTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.NotificationTask(nil), s.tasks...)
}
