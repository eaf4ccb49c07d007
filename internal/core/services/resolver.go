package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
	"github.com/custodia-labs/idsync/internal/logger"
)

// AccountIDResolver finds the local identities a delta refers to.
type AccountIDResolver struct {
	repo driven.IdentityRepository
}

// NewAccountIDResolver creates a resolver over the identity repository.
func NewAccountIDResolver(repo driven.IdentityRepository) *AccountIDResolver {
	return &AccountIDResolver{repo: repo}
}

// Resolve returns the keys of every identity matching the delta, sorted
// ascending. An empty result means no match. Repository failures are
// returned; evaluation problems are logged and yield no match.
func (r *AccountIDResolver) Resolve(
	ctx context.Context,
	rc domain.RunContext,
	delta domain.Delta,
	resource *domain.Resource,
) ([]string, error) {
	if alt := resource.AltSearchAttributes(); len(alt) > 0 {
		cond := BuildAltSearchCond(delta, resource, alt)
		logger.Debug("Searching %s for %s", resource.Name, cond)
		matches, err := r.repo.Search(ctx, rc, cond)
		if err != nil {
			return nil, fmt.Errorf("search identities: %w", err)
		}
		return identityKeys(matches), nil
	}

	if resource.AccountID == nil {
		return nil, fmt.Errorf("resource %q: %w", resource.Name, domain.ErrMissingAccountIDMapping)
	}
	mapping := resource.AccountID
	uid := norm.NFC.String(delta.MatchUID())

	var (
		matches []domain.Identity
		err     error
	)
	switch mapping.Kind {
	case domain.MappingByUsername:
		matches, err = r.repo.FindByUsername(ctx, rc, uid)
	case domain.MappingByNumericID:
		id, parseErr := strconv.ParseInt(strings.TrimSpace(uid), 10, 64)
		if parseErr != nil {
			logger.Warn("Uid %q is not a numeric id: %v", uid, parseErr)
			return nil, nil
		}
		matches, err = r.repo.FindByNumericID(ctx, rc, id)
	case domain.MappingByAttribute:
		matches, err = r.repo.FindByAttributeValue(ctx, rc, mapping.Attribute, uid)
	case domain.MappingByDerivedAttribute:
		matches, err = r.repo.FindByDerivedAttributeValue(ctx, rc, mapping.Attribute, uid)
		if errors.Is(err, domain.ErrCannotEvaluate) {
			logger.Warn("Cannot evaluate derived attribute %s for %q: %v", mapping.Attribute, uid, err)
			return nil, nil
		}
	default:
		return nil, fmt.Errorf("resource %q: %w: kind %q", resource.Name, domain.ErrMissingAccountIDMapping, mapping.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("find identities by %s: %w", mapping.Kind, err)
	}
	return identityKeys(matches), nil
}

// BuildAltSearchCond builds the AND condition for alternative search
// attributes. Delta values are read through the resource mapping.
func BuildAltSearchCond(delta domain.Delta, resource *domain.Resource, attrs []string) domain.SearchCond {
	var cond domain.SearchCond
	for _, name := range attrs {
		values := altSearchValues(delta, resource, name)
		if len(values) == 0 {
			cond = cond.And(domain.SearchLeaf{Attribute: name, Type: domain.LeafIsNull})
			continue
		}
		if len(values) > 1 {
			logger.Warn("Attribute %s is multi-valued, comparing its list form", name)
		}
		cond = cond.And(domain.SearchLeaf{
			Attribute: name,
			Type:      domain.LeafEquals,
			Value:     domain.RenderValues(values),
		})
	}
	return cond
}

func altSearchValues(delta domain.Delta, resource *domain.Resource, name string) []string {
	attr, ok := delta.Attribute(resource.ExternalName(name))
	if !ok && name == domain.FieldUsername {
		attr, ok = delta.Attribute(domain.AttrName)
	}
	if !ok {
		return nil
	}
	values := make([]string, 0, len(attr.Values))
	for _, v := range attr.Values {
		s := norm.NFC.String(v.String())
		if s != "" {
			values = append(values, s)
		}
	}
	return values
}

func identityKeys(identities []domain.Identity) []string {
	seen := make(map[string]struct{}, len(identities))
	keys := make([]string, 0, len(identities))
	for i := range identities {
		k := identities[i].Key
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
