// Package params models strategy parameter combinations and the spaces they are drawn from.
package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind identifies the scalar type carried by a Value
type Kind int

const (
	KindInt Kind = iota + 1
	KindFloat
	KindBool
	KindString
)

// String returns the configuration name of the kind
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// ParseKind converts a configuration name into a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "int":
		return KindInt, nil
	case "float":
		return KindFloat, nil
	case "bool":
		return KindBool, nil
	case "string":
		return KindString, nil
	default:
		return 0, fmt.Errorf("unknown parameter type %q", s)
	}
}

// Value is a typed parameter value. The zero Value is invalid.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
}

// Int creates an integer value
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float creates a floating point value
func Float(v float64) Value {
	if v == 0 {
		v = 0 // folds -0 into +0
	}
	return Value{kind: KindFloat, f: v}
}

// Bool creates a boolean value
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// String creates a string value
func String(v string) Value { return Value{kind: KindString, s: v} }

// Kind returns the value's kind
func (v Value) Kind() Kind { return v.kind }

// AsInt returns the integer payload
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsString returns the string payload
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsFloat returns the value as float64; integers are widened
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// Canonical returns the stable textual form used for hashing
func (v Value) Canonical() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return strconv.FormatFloat(v.f, 'g', -1, 64)
		}
		return decimal.NewFromFloat(v.f).String()
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return strconv.Quote(v.s)
	default:
		return ""
	}
}

// Native returns the Go value for plain-record serialization
func (v Value) Native() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindString:
		return v.s
	default:
		return nil
	}
}

// String implements fmt.Stringer
func (v Value) String() string {
	if v.kind == KindString {
		return v.s
	}
	return v.Canonical()
}

// MarshalJSON encodes the native value. Floats always carry a decimal point
// or an exponent so they decode back as floats.
func (v Value) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(v.Native())
	if err != nil || v.kind != KindFloat {
		return data, err
	}
	if !bytes.ContainsAny(data, ".eE") {
		data = append(data, '.', '0')
	}
	return data, nil
}

// UnmarshalJSON decodes a JSON scalar, keeping integer literals as ints
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode parameter value: %w", err)
	}
	parsed, err := FromNative(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// FromNative converts a decoded configuration or JSON scalar into a Value
func FromNative(raw any) (Value, error) {
	switch t := raw.(type) {
	case json.Number:
		if !strings.ContainsAny(t.String(), ".eE") {
			if i, err := t.Int64(); err == nil {
				return Int(i), nil
			}
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Float(f), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	default:
		return Value{}, fmt.Errorf("unsupported parameter value type %T", raw)
	}
}
