// value.go defines a tagged variant for attribute values. Payloads arrive
// from JSON decoding as interface{} trees; converting them into Value up
// front keeps the validator total — every case it switches over is a named
// variant, not an open-ended type assertion.
package model

import (
	"fmt"
	"math"
	"sort"
)

// ValueKind discriminates the variants of Value.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueNumber
	ValueString
	ValueArray
	ValueMap
)

// String returns the JSON-ish name of the kind, used in validation messages.
func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueBool:
		return "boolean"
	case ValueNumber:
		return "number"
	case ValueString:
		return "string"
	case ValueArray:
		return "array"
	case ValueMap:
		return "object"
	default:
		return "unknown"
	}
}

// Value is one JSON value with an explicit tag. The zero Value is null.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
	arr  []Value
	m    map[string]Value
}

// FromJSON converts a decoded JSON value (the interface{} tree produced by
// encoding/json) into a Value. Unsupported Go types yield an error rather
// than being coerced.
func FromJSON(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Value{}, nil
	case bool:
		return Value{kind: ValueBool, b: t}, nil
	case float64:
		return Value{kind: ValueNumber, n: t}, nil
	case int:
		return Value{kind: ValueNumber, n: float64(t)}, nil
	case int64:
		return Value{kind: ValueNumber, n: float64(t)}, nil
	case string:
		return Value{kind: ValueString, s: t}, nil
	case []any:
		arr := make([]Value, len(t))
		for i, el := range t {
			ev, err := FromJSON(el)
			if err != nil {
				return Value{}, err
			}
			arr[i] = ev
		}
		return Value{kind: ValueArray, arr: arr}, nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, el := range t {
			ev, err := FromJSON(el)
			if err != nil {
				return Value{}, err
			}
			m[k] = ev
		}
		return Value{kind: ValueMap, m: m}, nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// Kind returns the variant tag.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is the null variant.
func (v Value) IsNull() bool { return v.kind == ValueNull }

// Bool returns the boolean payload; valid only when Kind is ValueBool.
func (v Value) Bool() bool { return v.b }

// Number returns the numeric payload; valid only when Kind is ValueNumber.
func (v Value) Number() float64 { return v.n }

// IsFinite reports whether a numeric value is finite. JSON itself cannot
// encode NaN or infinities, but payloads assembled in-process can.
func (v Value) IsFinite() bool { return !math.IsNaN(v.n) && !math.IsInf(v.n, 0) }

// Str returns the string payload; valid only when Kind is ValueString.
func (v Value) Str() string { return v.s }

// Array returns the element slice; valid only when Kind is ValueArray.
func (v Value) Array() []Value { return v.arr }

// Map returns the member map; valid only when Kind is ValueMap.
func (v Value) Map() map[string]Value { return v.m }

// Keys returns the member names of a map value in sorted order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
