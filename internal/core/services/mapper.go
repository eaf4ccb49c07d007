package services

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

// Ensure DefaultAttributeMapper implements the interface.
var _ driven.AttributeMapper = (*DefaultAttributeMapper)(nil)

// DefaultAttributeMapper maps delta attributes onto identity attributes
// using the resource's mapping items. When a resource defines no mapping
// items every non-reserved attribute is carried under its own name.
type DefaultAttributeMapper struct{}

// NewDefaultAttributeMapper creates the default mapper.
func NewDefaultAttributeMapper() *DefaultAttributeMapper {
	return &DefaultAttributeMapper{}
}

type mappedDelta struct {
	// username is set when the delta names the account, either through a
	// mapped __NAME__ or through a username account-id mapping.
	username   string
	numericID  int64
	attributes map[string][]string
	cleared    []string
}

func (m *DefaultAttributeMapper) mapDelta(delta domain.Delta, resource *domain.Resource) mappedDelta {
	out := mappedDelta{attributes: make(map[string][]string)}
	for _, attr := range delta.Attributes {
		internal, ok := internalName(attr.Name, resource)
		if !ok {
			continue
		}
		values := make([]string, 0, len(attr.Values))
		for _, v := range attr.Values {
			s := norm.NFC.String(v.String())
			if s != "" {
				values = append(values, s)
			}
		}
		if internal == domain.FieldUsername {
			if len(values) > 0 {
				out.username = values[0]
			}
			continue
		}
		if len(values) == 0 {
			out.cleared = append(out.cleared, internal)
			continue
		}
		out.attributes[internal] = values
	}
	out.applyAccountID(norm.NFC.String(delta.UID), resource.AccountID)
	return out
}

// applyAccountID writes the uid where the account-id mapping reads it back,
// so identities created from a resource resolve on its next run.
func (m *mappedDelta) applyAccountID(uid string, mapping *domain.AccountIDMapping) {
	if uid == "" || mapping == nil {
		return
	}
	switch mapping.Kind {
	case domain.MappingByUsername:
		if m.username == "" {
			m.username = uid
		}
	case domain.MappingByNumericID:
		if id, err := strconv.ParseInt(strings.TrimSpace(uid), 10, 64); err == nil && id > 0 {
			m.numericID = id
		}
	case domain.MappingByAttribute:
		if mapping.Attribute == "" || mapping.Attribute == domain.FieldUsername {
			if m.username == "" {
				m.username = uid
			}
			return
		}
		m.attributes[mapping.Attribute] = []string{uid}
		m.cleared = slices.DeleteFunc(m.cleared, func(n string) bool { return n == mapping.Attribute })
	}
	// Derived attributes are computed from other attributes, which the
	// delta carries through the regular mapping.
}

func internalName(external string, resource *domain.Resource) (string, bool) {
	if name, ok := resource.InternalName(external); ok {
		return name, true
	}
	if len(resource.Mapping) > 0 {
		return "", false
	}
	switch {
	case strings.EqualFold(external, domain.AttrName):
		return domain.FieldUsername, true
	case strings.EqualFold(external, domain.AttrUID),
		strings.EqualFold(external, domain.AttrEnable),
		strings.EqualFold(external, domain.AttrPassword):
		return "", false
	}
	return external, true
}

// ToCandidate builds a new identity representation from a delta.
func (m *DefaultAttributeMapper) ToCandidate(delta domain.Delta, resource *domain.Resource) (*domain.Candidate, error) {
	mapped := m.mapDelta(delta, resource)
	username := mapped.username
	if username == "" {
		// A new identity needs a username; the uid is the only name left.
		username = norm.NFC.String(delta.UID)
	}
	if username == "" {
		return nil, fmt.Errorf("%w: delta carries no username", domain.ErrInvalidInput)
	}
	return &domain.Candidate{
		NumericID:  mapped.numericID,
		Username:   username,
		Attributes: mapped.attributes,
		Resources:  domain.MergeResources([]string{resource.Name}, resource.DefaultResources),
	}, nil
}

// ToModification builds the changes a delta makes to an existing identity.
// Only attributes whose values differ are replaced.
func (m *DefaultAttributeMapper) ToModification(
	delta domain.Delta,
	identity *domain.Identity,
	resource *domain.Resource,
) (*domain.Modification, error) {
	mapped := m.mapDelta(delta, resource)
	mod := &domain.Modification{
		Key:     identity.Key,
		Replace: make(map[string][]string),
	}
	if mapped.username != "" && mapped.username != identity.Username {
		mod.Username = mapped.username
	}
	for name, values := range mapped.attributes {
		if !slices.Equal(values, identity.AttributeValues(name)) {
			mod.Replace[name] = values
		}
	}
	for _, name := range mapped.cleared {
		if len(identity.AttributeValues(name)) > 0 {
			mod.Remove = append(mod.Remove, name)
		}
	}
	slices.Sort(mod.Remove)
	if !identity.HasResource(resource.Name) {
		mod.AddResources = []string{resource.Name}
	}
	return mod, nil
}
