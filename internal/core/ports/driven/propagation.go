package driven

import (
	"context"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

// PropagationManager pushes confirmed identity changes to external resources.
type PropagationManager interface {
	// Execute runs every task. It attempts all tasks and returns the
	// joined errors of those that failed.
	Execute(ctx context.Context, rc domain.RunContext, tasks []domain.PropagationTask) error
}

// PropagationTarget delivers tasks to one external resource.
type PropagationTarget interface {
	// Name returns the target type for logging and configuration.
	Name() string

	// Push delivers one task.
	Push(ctx context.Context, task domain.PropagationTask) error

	// Close releases resources.
	Close() error
}

// PropagationTargetBuilder creates a target for a resource.
type PropagationTargetBuilder func(resource domain.Resource) (PropagationTarget, error)

// PropagationTaskStore records executed propagation tasks.
type PropagationTaskStore interface {
	// Record stores a task with its delivery status.
	Record(ctx context.Context, task domain.PropagationTask) error

	// List returns recent tasks for a resource, most recent first.
	List(ctx context.Context, resource string, limit int) ([]domain.PropagationTask, error)
}

// NotificationSink records notification tasks for identity events.
// Fire and forget: callers log failures and carry on.
type NotificationSink interface {
	CreateTasks(ctx context.Context, rc domain.RunContext, identityKey string, events []string) error
}
