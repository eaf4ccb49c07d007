package driven

import (
	"context"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

// ExecutionStore persists sync run history.
type ExecutionStore interface {
	// Save records a finished run.
	Save(ctx context.Context, exec domain.Execution) error

	// List returns recent runs for a resource, most recent first.
	// An empty resource lists runs of every resource.
	List(ctx context.Context, resource string, limit int) ([]domain.Execution, error)

	// Prune keeps the most recent 'keep' runs per resource.
	Prune(ctx context.Context, keep int) error
}
