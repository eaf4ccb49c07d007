package driven

import (
	"context"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

// SyncTokenStore keeps the last committed token of each resource. The
// engine writes it only after a run finishes without fatal errors.
type SyncTokenStore interface {
	Save(ctx context.Context, state domain.SyncState) error

	// Get returns ErrNotFound before the first successful sync.
	Get(ctx context.Context, resource string) (*domain.SyncState, error)

	// Delete forgets the token so the next sync starts from the beginning
	// of the change stream.
	Delete(ctx context.Context, resource string) error
}
