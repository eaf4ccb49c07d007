package domain

import (
	"fmt"
	"strings"
)

// MappingKind selects how an external uid is translated into a local lookup.
type MappingKind string

const (
	// MappingByUsername matches the uid against identity usernames.
	MappingByUsername MappingKind = "username"

	// MappingByNumericID matches the uid against identity numeric ids.
	MappingByNumericID MappingKind = "numeric_id"

	// MappingByAttribute matches the uid against a plain attribute.
	MappingByAttribute MappingKind = "attribute"

	// MappingByDerivedAttribute matches the uid against a derived attribute.
	MappingByDerivedAttribute MappingKind = "derived_attribute"
)

// AccountIDMapping is the rule for translating an external identifier into a
// local identity lookup.
type AccountIDMapping struct {
	Kind      MappingKind
	Attribute string
}

// Validate checks that the mapping is complete.
func (m *AccountIDMapping) Validate() error {
	switch m.Kind {
	case MappingByUsername, MappingByNumericID:
		return nil
	case MappingByAttribute, MappingByDerivedAttribute:
		if m.Attribute == "" {
			return fmt.Errorf("%w: mapping kind %q requires an attribute", ErrMissingAccountIDMapping, m.Kind)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown mapping kind %q", ErrMissingAccountIDMapping, m.Kind)
	}
}

// ConflictPolicy decides which of several matching identities are acted on.
type ConflictPolicy string

const (
	// ConflictIgnore drops the delta when more than one identity matches.
	ConflictIgnore ConflictPolicy = "IGNORE"

	// ConflictFirstMatch acts on the first match.
	ConflictFirstMatch ConflictPolicy = "FIRST_MATCH"

	// ConflictLastMatch acts on the last match.
	ConflictLastMatch ConflictPolicy = "LAST_MATCH"

	// ConflictAll acts on every match.
	ConflictAll ConflictPolicy = "ALL"
)

// ParseConflictPolicy parses a policy name, case-insensitively.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	p := ConflictPolicy(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case ConflictIgnore, ConflictFirstMatch, ConflictLastMatch, ConflictAll:
		return p, nil
	case "":
		return ConflictIgnore, nil
	default:
		return "", fmt.Errorf("%w: conflict policy %q", ErrInvalidInput, s)
	}
}

// SyncPolicy is the per-resource conflict configuration.
type SyncPolicy struct {
	ConflictResolution ConflictPolicy

	// AltSearchAttributes replaces the account-id mapping when non-empty.
	AltSearchAttributes []string
}

// MappingItem maps an external attribute onto a local one.
type MappingItem struct {
	External string
	Internal string
}

// TraceLevel controls how much detail a run report contains.
type TraceLevel string

const (
	TraceNone     TraceLevel = "NONE"
	TraceSummary  TraceLevel = "SUMMARY"
	TraceFailures TraceLevel = "FAILURES"
	TraceAll      TraceLevel = "ALL"
)

func (l TraceLevel) ordinal() int {
	switch l {
	case TraceSummary:
		return 1
	case TraceFailures:
		return 2
	case TraceAll:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether l is as verbose as other.
func (l TraceLevel) AtLeast(other TraceLevel) bool {
	return l.ordinal() >= other.ordinal()
}

// ParseTraceLevel parses a trace level name, case-insensitively.
// An empty string yields TraceAll.
func ParseTraceLevel(s string) (TraceLevel, error) {
	l := TraceLevel(strings.ToUpper(strings.TrimSpace(s)))
	switch l {
	case TraceNone, TraceSummary, TraceFailures, TraceAll:
		return l, nil
	case "":
		return TraceAll, nil
	default:
		return "", fmt.Errorf("%w: trace level %q", ErrInvalidInput, s)
	}
}

// Resource is an external resource definition and its sync settings.
type Resource struct {
	// Name uniquely identifies the resource.
	Name string

	// ConnectorType selects the connector implementation.
	ConnectorType string

	// ObjectClass is the connector object class to sync.
	ObjectClass string

	// ConnectorConfig holds connector-specific settings.
	ConnectorConfig map[string]string

	// AccountID is the account-id mapping. Nil is a fatal configuration error.
	AccountID *AccountIDMapping

	// SyncPolicy is the optional conflict configuration.
	SyncPolicy *SyncPolicy

	// Mapping lists attribute mapping items.
	Mapping []MappingItem

	PerformCreate bool
	PerformUpdate bool
	PerformDelete bool

	// SyncStatus makes __ENABLE__ drive the identity status.
	SyncStatus bool

	// TraceLevel controls the run report.
	TraceLevel TraceLevel

	// DefaultResources are assigned to identities created from this resource.
	DefaultResources []string

	// PropagationTarget names the target type used when pushing to this resource.
	PropagationTarget string

	// PropagationConfig holds target-specific settings.
	PropagationConfig map[string]string
}

// ConflictPolicy returns the configured policy, defaulting to IGNORE.
func (r *Resource) ConflictPolicy() ConflictPolicy {
	if r.SyncPolicy == nil || r.SyncPolicy.ConflictResolution == "" {
		return ConflictIgnore
	}
	return r.SyncPolicy.ConflictResolution
}

// AltSearchAttributes returns the alternative search attributes, if any.
func (r *Resource) AltSearchAttributes() []string {
	if r.SyncPolicy == nil {
		return nil
	}
	return r.SyncPolicy.AltSearchAttributes
}

// ExternalName returns the external attribute name mapped to internal,
// falling back to internal itself.
func (r *Resource) ExternalName(internal string) string {
	for _, m := range r.Mapping {
		if strings.EqualFold(m.Internal, internal) {
			return m.External
		}
	}
	return internal
}

// InternalName returns the local attribute name mapped from external,
// or false when no item maps it.
func (r *Resource) InternalName(external string) (string, bool) {
	for _, m := range r.Mapping {
		if strings.EqualFold(m.External, external) {
			return m.Internal, true
		}
	}
	return "", false
}

// Validate checks the resource definition for missing required fields.
func (r *Resource) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: resource name is required", ErrInvalidInput)
	}
	if r.ConnectorType == "" {
		return fmt.Errorf("%w: resource %q: connector type is required", ErrInvalidInput, r.Name)
	}
	if r.SyncPolicy != nil && r.SyncPolicy.ConflictResolution != "" {
		if _, err := ParseConflictPolicy(string(r.SyncPolicy.ConflictResolution)); err != nil {
			return fmt.Errorf("resource %q: %w", r.Name, err)
		}
	}
	if r.TraceLevel != "" {
		if _, err := ParseTraceLevel(string(r.TraceLevel)); err != nil {
			return fmt.Errorf("resource %q: %w", r.Name, err)
		}
	}
	return nil
}
