package driven

import (
	"context"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

// IdentityRepository persists local identities.
// Implementations serialise concurrent writes to the same identity.
type IdentityRepository interface {
	// FindByKey retrieves an identity.
	// Returns ErrNotFound if the identity does not exist.
	FindByKey(ctx context.Context, rc domain.RunContext, key string) (*domain.Identity, error)

	// FindByUsername returns every identity with the given username.
	FindByUsername(ctx context.Context, rc domain.RunContext, username string) ([]domain.Identity, error)

	// FindByNumericID returns the identity with the given numeric id, if any.
	FindByNumericID(ctx context.Context, rc domain.RunContext, id int64) ([]domain.Identity, error)

	// FindByAttributeValue returns every identity whose plain attribute
	// has exactly one value equal to value.
	FindByAttributeValue(ctx context.Context, rc domain.RunContext, attr, value string) ([]domain.Identity, error)

	// FindByDerivedAttributeValue returns every identity whose derived
	// attribute evaluates to value. Returns ErrCannotEvaluate when the
	// derived schema is unknown.
	FindByDerivedAttributeValue(ctx context.Context, rc domain.RunContext, attr, value string) ([]domain.Identity, error)

	// Search returns every identity matching the condition.
	Search(ctx context.Context, rc domain.RunContext, cond domain.SearchCond) ([]domain.Identity, error)

	// List returns every identity ordered by key.
	List(ctx context.Context, rc domain.RunContext) ([]domain.Identity, error)

	// Save creates or updates an identity and returns the stored record.
	// A zero NumericID is assigned on create.
	Save(ctx context.Context, rc domain.RunContext, identity domain.Identity) (*domain.Identity, error)

	// Delete removes an identity.
	Delete(ctx context.Context, rc domain.RunContext, key string) error
}
