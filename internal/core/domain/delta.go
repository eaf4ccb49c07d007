package domain

import "strings"

// Reserved attribute names understood by the engine.
const (
	// AttrName carries the account name on the external resource.
	AttrName = "__NAME__"

	// AttrUID carries the external unique identifier.
	AttrUID = "__UID__"

	// AttrEnable carries the account enabled flag.
	AttrEnable = "__ENABLE__"

	// AttrPassword carries a password value. Never stored as a plain attribute.
	AttrPassword = "__PASSWORD__"
)

// DeltaType describes the kind of change a delta reports.
type DeltaType string

const (
	// DeltaCreateOrUpdate reports that an object was created or modified.
	DeltaCreateOrUpdate DeltaType = "CREATE_OR_UPDATE"

	// DeltaDelete reports that an object was removed.
	DeltaDelete DeltaType = "DELETE"
)

// IsValid reports whether the type is a known delta type.
func (t DeltaType) IsValid() bool {
	return t == DeltaCreateOrUpdate || t == DeltaDelete
}

// Attribute is a named, ordered list of values.
type Attribute struct {
	Name   string
	Values []Value
}

// First returns the first value and whether one exists.
func (a Attribute) First() (Value, bool) {
	if len(a.Values) == 0 {
		return Value{}, false
	}
	return a.Values[0], true
}

// Strings renders every value as text.
func (a Attribute) Strings() []string {
	out := make([]string, len(a.Values))
	for i, v := range a.Values {
		out[i] = v.String()
	}
	return out
}

// Delta is one change notification from an external resource.
// Deltas are produced by a connector during a run and are never persisted.
type Delta struct {
	// Type is the change kind.
	Type DeltaType

	// UID is the current external identifier of the object.
	UID string

	// PreviousUID is set when the object was renamed.
	PreviousUID string

	// Attributes holds the object's attributes in connector order.
	Attributes []Attribute
}

// MatchUID returns the identifier used for matching: the previous uid when
// the delta reports a rename, otherwise the current uid.
func (d Delta) MatchUID() string {
	if d.PreviousUID != "" {
		return d.PreviousUID
	}
	return d.UID
}

// IsRename reports whether the delta carries a previous uid that differs
// from the current one.
func (d Delta) IsRename() bool {
	return d.PreviousUID != "" && d.PreviousUID != d.UID
}

// Attribute looks up an attribute by name, case-insensitively.
func (d Delta) Attribute(name string) (Attribute, bool) {
	for _, a := range d.Attributes {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return Attribute{}, false
}

// Enabled returns the value of the __ENABLE__ attribute, or nil when the
// delta does not carry a usable one.
func (d Delta) Enabled() *bool {
	attr, ok := d.Attribute(AttrEnable)
	if !ok {
		return nil
	}
	v, ok := attr.First()
	if !ok {
		return nil
	}
	b, ok := v.AsBool()
	if !ok {
		return nil
	}
	return &b
}
