package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

// Ensure IdentityRepository implements the interface.
var _ driven.IdentityRepository = (*IdentityRepository)(nil)

// IdentityRepository is an in-memory implementation of driven.IdentityRepository.
type IdentityRepository struct {
	mu         sync.RWMutex
	identities map[string]domain.Identity
	nextID     int64
	derived    domain.DerivedSchemas
	writes     int
}

// NewIdentityRepository creates a new in-memory identity repository.
// derived may be nil when no derived schemas are defined.
func NewIdentityRepository(derived domain.DerivedSchemas) *IdentityRepository {
	return &IdentityRepository{
		identities: make(map[string]domain.Identity),
		derived:    derived,
	}
}

// Writes returns how many Save and Delete calls have succeeded.
func (r *IdentityRepository) Writes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writes
}

// FindByKey retrieves an identity.
func (r *IdentityRepository) FindByKey(_ context.Context, _ domain.RunContext, key string) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.identities[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := copyIdentity(identity)
	return &cp, nil
}

// FindByUsername returns every identity with the given username.
func (r *IdentityRepository) FindByUsername(_ context.Context, _ domain.RunContext, username string) ([]domain.Identity, error) {
	return r.filter(func(i *domain.Identity) bool { return i.Username == username }), nil
}

// FindByNumericID returns the identity with the given numeric id.
func (r *IdentityRepository) FindByNumericID(_ context.Context, _ domain.RunContext, id int64) ([]domain.Identity, error) {
	return r.filter(func(i *domain.Identity) bool { return i.NumericID == id }), nil
}

// FindByAttributeValue returns identities whose attribute has the single value.
func (r *IdentityRepository) FindByAttributeValue(_ context.Context, _ domain.RunContext, attr, value string) ([]domain.Identity, error) {
	return r.filter(func(i *domain.Identity) bool {
		values := i.AttributeValues(attr)
		return len(values) == 1 && values[0] == value
	}), nil
}

// FindByDerivedAttributeValue returns identities whose derived attribute
// evaluates to value.
func (r *IdentityRepository) FindByDerivedAttributeValue(
	_ context.Context,
	_ domain.RunContext,
	attr, value string,
) ([]domain.Identity, error) {
	if _, ok := r.derived[attr]; !ok {
		return nil, fmt.Errorf("%w: unknown derived schema %q", domain.ErrCannotEvaluate, attr)
	}
	return r.filter(func(i *domain.Identity) bool {
		v, ok, err := r.derived.Evaluate(attr, i)
		return err == nil && ok && v == value
	}), nil
}

// Search returns every identity matching the condition.
func (r *IdentityRepository) Search(_ context.Context, _ domain.RunContext, cond domain.SearchCond) ([]domain.Identity, error) {
	return r.filter(cond.Matches), nil
}

// List returns every identity ordered by key.
func (r *IdentityRepository) List(_ context.Context, _ domain.RunContext) ([]domain.Identity, error) {
	return r.filter(func(*domain.Identity) bool { return true }), nil
}

// Save creates or updates an identity.
func (r *IdentityRepository) Save(_ context.Context, _ domain.RunContext, identity domain.Identity) (*domain.Identity, error) {
	if identity.Key == "" {
		return nil, fmt.Errorf("%w: identity key is required", domain.ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if existing, ok := r.identities[identity.Key]; ok {
		identity.NumericID = existing.NumericID
		identity.CreatedAt = existing.CreatedAt
	} else {
		if identity.NumericID == 0 {
			r.nextID++
			identity.NumericID = r.nextID
		} else if identity.NumericID > r.nextID {
			r.nextID = identity.NumericID
		}
		if identity.CreatedAt.IsZero() {
			identity.CreatedAt = now
		}
	}
	identity.UpdatedAt = now

	stored := copyIdentity(identity)
	r.identities[identity.Key] = stored
	r.writes++

	out := copyIdentity(stored)
	return &out, nil
}

// Delete removes an identity.
func (r *IdentityRepository) Delete(_ context.Context, _ domain.RunContext, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.identities[key]; !ok {
		return domain.ErrNotFound
	}
	delete(r.identities, key)
	r.writes++
	return nil
}

func (r *IdentityRepository) filter(match func(*domain.Identity) bool) []domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Identity
	for _, identity := range r.identities {
		if match(&identity) {
			out = append(out, copyIdentity(identity))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func copyIdentity(i domain.Identity) domain.Identity {
	out := i
	if i.Attributes != nil {
		out.Attributes = make(map[string][]string, len(i.Attributes))
		for k, v := range i.Attributes {
			out.Attributes[k] = append([]string(nil), v...)
		}
	}
	out.Resources = append([]string(nil), i.Resources...)
	return out
}

