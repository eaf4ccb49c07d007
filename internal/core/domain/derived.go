package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// DerivedSchema defines an attribute computed from other attributes.
// Expression is a template where {name} is replaced by the first value of
// the named attribute, or by the identity-native id, key or username.
type DerivedSchema struct {
	Name       string
	Expression string
}

type exprPart struct {
	literal string
	ref     string
}

// DerivedExpression is a parsed derived schema expression.
type DerivedExpression struct {
	parts []exprPart
}

// ParseDerivedExpression parses a template expression.
func ParseDerivedExpression(expr string) (*DerivedExpression, error) {
	var parts []exprPart
	rest := expr
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		closeIdx := strings.IndexByte(rest, '}')
		if open < 0 {
			if closeIdx >= 0 {
				return nil, fmt.Errorf("%w: unmatched '}' in %q", ErrCannotEvaluate, expr)
			}
			parts = append(parts, exprPart{literal: rest})
			break
		}
		if closeIdx >= 0 && closeIdx < open {
			return nil, fmt.Errorf("%w: unmatched '}' in %q", ErrCannotEvaluate, expr)
		}
		if open > 0 {
			parts = append(parts, exprPart{literal: rest[:open]})
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated reference in %q", ErrCannotEvaluate, expr)
		}
		ref := strings.TrimSpace(rest[open+1 : open+end])
		if ref == "" {
			return nil, fmt.Errorf("%w: empty reference in %q", ErrCannotEvaluate, expr)
		}
		parts = append(parts, exprPart{ref: ref})
		rest = rest[open+end+1:]
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: empty expression", ErrCannotEvaluate)
	}
	return &DerivedExpression{parts: parts}, nil
}

// References lists the attribute names the expression reads.
func (e *DerivedExpression) References() []string {
	var refs []string
	for _, p := range e.parts {
		if p.ref != "" {
			refs = append(refs, p.ref)
		}
	}
	return refs
}

// Evaluate renders the expression for an identity. It returns false when
// a referenced attribute has no value.
func (e *DerivedExpression) Evaluate(identity *Identity) (string, bool) {
	var b strings.Builder
	for _, p := range e.parts {
		if p.ref == "" {
			b.WriteString(p.literal)
			continue
		}
		var v string
		switch p.ref {
		case "key":
			v = identity.Key
		case FieldID:
			v = strconv.FormatInt(identity.NumericID, 10)
		case FieldUsername:
			v = identity.Username
		default:
			if vals := identity.AttributeValues(p.ref); len(vals) > 0 {
				v = vals[0]
			}
		}
		if v == "" {
			return "", false
		}
		b.WriteString(v)
	}
	return b.String(), true
}

// DerivedSchemas is a set of derived schemas indexed by name.
type DerivedSchemas map[string]*DerivedExpression

// NewDerivedSchemas parses every schema.
func NewDerivedSchemas(schemas []DerivedSchema) (DerivedSchemas, error) {
	out := make(DerivedSchemas, len(schemas))
	for _, s := range schemas {
		expr, err := ParseDerivedExpression(s.Expression)
		if err != nil {
			return nil, fmt.Errorf("derived schema %q: %w", s.Name, err)
		}
		out[s.Name] = expr
	}
	return out, nil
}

// Evaluate evaluates the named schema. An unknown schema yields
// ErrCannotEvaluate.
func (d DerivedSchemas) Evaluate(name string, identity *Identity) (string, bool, error) {
	expr, ok := d[name]
	if !ok {
		return "", false, fmt.Errorf("%w: unknown derived schema %q", ErrCannotEvaluate, name)
	}
	v, ok := expr.Evaluate(identity)
	return v, ok, nil
}
