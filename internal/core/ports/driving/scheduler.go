package driving

import (
	"context"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

// Scheduler runs per-resource syncs, reconciliations and history pruning
// on their intervals.
type Scheduler interface {
	// Start registers tasks for the configured resources and runs due
	// tasks until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop ends the loop and waits for running tasks.
	Stop() error

	// Tasks returns the persisted tasks in ID order.
	Tasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// History returns recent results of a task, most recent first.
	History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)
}
