package driving

import (
	"context"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

// SyncEngine reconciles external resources with local identities.
type SyncEngine interface {
	// Sync runs one sync of a resource and returns its result.
	// Per-identity failures are reported in the result; only fatal
	// conditions are returned as errors.
	Sync(ctx context.Context, resource string, opts domain.SyncOptions) (*domain.SyncRunResult, error)

	// SyncAll syncs every configured resource. Resources run concurrently.
	SyncAll(ctx context.Context, opts domain.SyncOptions) ([]*domain.SyncRunResult, error)

	// Watch runs incremental syncs whenever the resource's connector
	// signals new changes, until ctx is cancelled.
	Watch(ctx context.Context, resource string, opts domain.SyncOptions, onResult func(*domain.SyncRunResult)) error

	// Status returns sync status for a resource.
	Status(ctx context.Context, resource string) (*domain.SyncStatus, error)
}
