package driven

import (
	"context"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

// WorkflowAdapter applies identity changes on behalf of the engine.
// Variants are chosen at composition time.
type WorkflowAdapter interface {
	// Create creates an identity from a candidate. A non-nil enabled
	// overrides the initial status.
	Create(ctx context.Context, rc domain.RunContext, candidate domain.Candidate, enabled *bool) (*domain.WorkflowResult, error)

	// Update applies a modification to an existing identity.
	Update(ctx context.Context, rc domain.RunContext, mod domain.Modification) (*domain.WorkflowResult, error)

	// Suspend disables an identity.
	Suspend(ctx context.Context, rc domain.RunContext, key string) (*domain.WorkflowResult, error)

	// Reactivate enables a suspended identity.
	Reactivate(ctx context.Context, rc domain.RunContext, key string) (*domain.WorkflowResult, error)

	// Delete removes an identity.
	Delete(ctx context.Context, rc domain.RunContext, key string) error
}

// AttributeMapper translates deltas into identity changes.
type AttributeMapper interface {
	// ToCandidate builds a new identity representation from a delta.
	ToCandidate(delta domain.Delta, resource *domain.Resource) (*domain.Candidate, error)

	// ToModification builds the changes a delta makes to an existing identity.
	ToModification(delta domain.Delta, identity *domain.Identity, resource *domain.Resource) (*domain.Modification, error)
}
