package driven

import (
	"context"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

// ResourceStore provides resource definitions.
type ResourceStore interface {
	// Get retrieves a resource by name.
	// Returns ErrNotFound if the resource is not defined.
	Get(ctx context.Context, name string) (*domain.Resource, error)

	// List returns all defined resources in name order.
	List(ctx context.Context) ([]domain.Resource, error)
}
