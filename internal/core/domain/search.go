package domain

import (
	"strconv"
	"strings"
)

// Identity-native search fields.
const (
	FieldID       = "id"
	FieldUsername = "username"
)

// IsNativeField reports whether name addresses an identity-native field
// rather than a plain attribute.
func IsNativeField(name string) bool {
	return name == FieldID || name == FieldUsername
}

// LeafType is the comparison a search leaf performs.
type LeafType string

const (
	LeafEquals LeafType = "EQ"
	LeafIsNull LeafType = "ISNULL"
)

// SearchLeaf is one condition of a conjunctive search.
type SearchLeaf struct {
	Attribute string
	Type      LeafType
	Value     string
}

// Native reports whether the leaf targets an identity-native field.
func (l SearchLeaf) Native() bool {
	return IsNativeField(l.Attribute)
}

// SearchCond is an AND of leaves. An empty condition matches nothing.
type SearchCond struct {
	Leaves []SearchLeaf
}

// And appends a leaf and returns the condition.
func (c SearchCond) And(leaf SearchLeaf) SearchCond {
	c.Leaves = append(append([]SearchLeaf(nil), c.Leaves...), leaf)
	return c
}

// String renders the condition for logs.
func (c SearchCond) String() string {
	parts := make([]string, len(c.Leaves))
	for i, l := range c.Leaves {
		if l.Type == LeafIsNull {
			parts[i] = l.Attribute + " IS NULL"
		} else {
			parts[i] = l.Attribute + " == " + strconv.Quote(l.Value)
		}
	}
	return strings.Join(parts, " AND ")
}

// Matches evaluates the condition against an identity.
func (c SearchCond) Matches(identity *Identity) bool {
	if len(c.Leaves) == 0 {
		return false
	}
	for _, l := range c.Leaves {
		if !l.matches(identity) {
			return false
		}
	}
	return true
}

func (l SearchLeaf) matches(identity *Identity) bool {
	switch l.Attribute {
	case FieldID:
		if l.Type == LeafIsNull {
			return false
		}
		return strconv.FormatInt(identity.NumericID, 10) == l.Value
	case FieldUsername:
		if l.Type == LeafIsNull {
			return identity.Username == ""
		}
		return identity.Username == l.Value
	}
	values := identity.AttributeValues(l.Attribute)
	if l.Type == LeafIsNull {
		return len(values) == 0
	}
	return RenderValues(values) == l.Value
}

// RenderValues renders attribute values as a comparison string. A single
// value renders as itself, several values render as "[a, b]".
func RenderValues(values []string) string {
	switch len(values) {
	case 0:
		return ""
	case 1:
		return values[0]
	default:
		return "[" + strings.Join(values, ", ") + "]"
	}
}
