package domain

import (
	"sort"
	"time"
)

// IdentityStatus is the lifecycle state of a local identity.
type IdentityStatus string

const (
	// StatusActive is an enabled identity.
	StatusActive IdentityStatus = "active"

	// StatusSuspended is a disabled identity.
	StatusSuspended IdentityStatus = "suspended"

	// StatusPending is an identity awaiting approval.
	StatusPending IdentityStatus = "pending"
)

// Enabled reports whether the status counts as enabled for status sync.
func (s IdentityStatus) Enabled() bool {
	return s == StatusActive
}

// Identity is a locally known identity record.
type Identity struct {
	// Key is the stable, opaque identity key.
	Key string

	// NumericID is a store-assigned sequence number, unique per store.
	NumericID int64

	// Username is the login name. Not guaranteed unique.
	Username string

	// Status is the lifecycle state.
	Status IdentityStatus

	// Attributes holds plain attribute values by name.
	Attributes map[string][]string

	// Resources lists the external resources this identity is assigned to.
	Resources []string

	// CreatedAt is when the identity was created.
	CreatedAt time.Time

	// UpdatedAt is when the identity was last modified.
	UpdatedAt time.Time
}

// DisplayLabel returns the human-readable label used in reports.
func (i *Identity) DisplayLabel() string {
	if i.Username != "" {
		return i.Username
	}
	return i.Key
}

// AttributeValues returns the values of a plain attribute.
func (i *Identity) AttributeValues(name string) []string {
	if i.Attributes == nil {
		return nil
	}
	return i.Attributes[name]
}

// HasResource reports whether the identity is assigned to the resource.
func (i *Identity) HasResource(name string) bool {
	for _, r := range i.Resources {
		if r == name {
			return true
		}
	}
	return false
}

// Candidate is the representation of a new identity built from a delta.
type Candidate struct {
	// NumericID requests a specific numeric id. Zero lets the repository
	// assign one.
	NumericID  int64
	Username   string
	Attributes map[string][]string
	Resources  []string
}

// DisplayLabel returns the label for a candidate that has no key yet.
func (c *Candidate) DisplayLabel() string {
	return c.Username
}

// Modification is the set of changes to apply to an existing identity.
type Modification struct {
	// Key identifies the identity being modified.
	Key string

	// Username is the new username, empty when unchanged.
	Username string

	// Replace holds attributes whose values are replaced wholesale.
	Replace map[string][]string

	// Remove lists attributes to clear.
	Remove []string

	// AddResources lists resources to assign.
	AddResources []string
}

// IsEmpty reports whether the modification changes nothing.
func (m *Modification) IsEmpty() bool {
	return m.Username == "" && len(m.Replace) == 0 && len(m.Remove) == 0 && len(m.AddResources) == 0
}

// ApplyTo returns a copy of the identity with the modification applied.
func (m *Modification) ApplyTo(identity Identity) Identity {
	out := identity
	out.Attributes = make(map[string][]string, len(identity.Attributes)+len(m.Replace))
	for k, v := range identity.Attributes {
		out.Attributes[k] = append([]string(nil), v...)
	}
	if m.Username != "" {
		out.Username = m.Username
	}
	for k, v := range m.Replace {
		out.Attributes[k] = append([]string(nil), v...)
	}
	for _, k := range m.Remove {
		delete(out.Attributes, k)
	}
	out.Resources = MergeResources(identity.Resources, m.AddResources)
	return out
}

// MergeResources returns the sorted union of both lists.
func MergeResources(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, r := range list {
			if r == "" {
				continue
			}
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	sort.Strings(out)
	return out
}

// WorkflowResult is what a workflow adapter reports after a change.
type WorkflowResult struct {
	// Key is the identity key the change applied to.
	Key string

	// PropagationEligible is false when the change awaits approval.
	PropagationEligible bool

	// AffectedResources lists the resources the change must be pushed to.
	AffectedResources []string

	// Events lists the workflow events raised by the change.
	Events []string
}
