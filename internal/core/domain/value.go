package domain

import (
	"bytes"
	"encoding/base64"
	"strconv"
)

// ValueKind identifies the semantic type of an attribute value.
type ValueKind int

const (
	// ValueString is a textual value.
	ValueString ValueKind = iota

	// ValueBool is a boolean value.
	ValueBool

	// ValueNumber is a numeric value.
	ValueNumber

	// ValueBinary is an opaque byte value.
	ValueBinary
)

// String returns the kind name.
func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "string"
	case ValueBool:
		return "boolean"
	case ValueNumber:
		return "number"
	case ValueBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Value is a single typed attribute value carried by a delta.
type Value struct {
	Kind ValueKind
	Str  string
	Bool bool
	Num  float64
	Bin  []byte
}

// StringValue wraps s.
func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }

// BoolValue wraps b.
func BoolValue(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

// NumberValue wraps n.
func NumberValue(n float64) Value { return Value{Kind: ValueNumber, Num: n} }

// BinaryValue wraps a copy of b.
func BinaryValue(b []byte) Value {
	return Value{Kind: ValueBinary, Bin: append([]byte(nil), b...)}
}

// String renders the value as text. Binary values are base64 encoded.
func (v Value) String() string {
	switch v.Kind {
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueBinary:
		return base64.StdEncoding.EncodeToString(v.Bin)
	default:
		return v.Str
	}
}

// Equal reports whether both values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueBool:
		return v.Bool == o.Bool
	case ValueNumber:
		return v.Num == o.Num
	case ValueBinary:
		return bytes.Equal(v.Bin, o.Bin)
	default:
		return v.Str == o.Str
	}
}

// AsBool interprets the value as a boolean.
// Strings "true"/"false" (any case, also "1"/"0") are accepted.
func (v Value) AsBool() (bool, bool) {
	switch v.Kind {
	case ValueBool:
		return v.Bool, true
	case ValueNumber:
		return v.Num != 0, true
	case ValueString:
		b, err := strconv.ParseBool(v.Str)
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}
