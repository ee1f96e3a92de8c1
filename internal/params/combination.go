package params

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Combination is an immutable set of named parameter values.
// Its hash depends only on the values, never on insertion order.
type Combination struct {
	values map[string]Value
	hash   string
}

// NewCombination copies values into a new combination
func NewCombination(values map[string]Value) Combination {
	copied := make(map[string]Value, len(values))
	for name, v := range values {
		copied[name] = v
	}
	return Combination{values: copied, hash: hashValues(copied)}
}

// Len returns the number of parameters
func (c Combination) Len() int { return len(c.values) }

// IsZero reports whether the combination was never constructed
func (c Combination) IsZero() bool { return c.values == nil }

// Get returns the named value
func (c Combination) Get(name string) (Value, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Float returns the named value as float64
func (c Combination) Float(name string) (float64, bool) {
	v, ok := c.values[name]
	if !ok {
		return 0, false
	}
	return v.AsFloat()
}

// Int returns the named integer value
func (c Combination) Int(name string) (int64, bool) {
	v, ok := c.values[name]
	if !ok {
		return 0, false
	}
	return v.AsInt()
}

// Names returns parameter names in sorted order
func (c Combination) Names() []string {
	names := make([]string, 0, len(c.values))
	for name := range c.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Values returns a copy of the underlying mapping
func (c Combination) Values() map[string]Value {
	copied := make(map[string]Value, len(c.values))
	for name, v := range c.values {
		copied[name] = v
	}
	return copied
}

// Native returns the mapping as plain Go values
func (c Combination) Native() map[string]any {
	out := make(map[string]any, len(c.values))
	for name, v := range c.values {
		out[name] = v.Native()
	}
	return out
}

// Hash returns the content hash
func (c Combination) Hash() string {
	if c.hash == "" {
		return hashValues(c.values)
	}
	return c.hash
}

// With returns a new combination with name set to v
func (c Combination) With(name string, v Value) Combination {
	values := c.Values()
	values[name] = v
	return NewCombination(values)
}

// String renders name=value pairs in sorted order
func (c Combination) String() string {
	parts := make([]string, 0, len(c.values))
	for _, name := range c.Names() {
		parts = append(parts, name+"="+c.values[name].String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON encodes the combination as a plain object
func (c Combination) MarshalJSON() ([]byte, error) {
	if c.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.values)
}

// UnmarshalJSON decodes a plain object into a combination
func (c *Combination) UnmarshalJSON(data []byte) error {
	var values map[string]Value
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("failed to decode parameter combination: %w", err)
	}
	*c = NewCombination(values)
	return nil
}

func hashValues(values map[string]Value) string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	for _, name := range names {
		v := values[name]
		buf.WriteString(name)
		buf.WriteByte('=')
		buf.WriteString(v.Kind().String())
		buf.WriteByte(':')
		buf.WriteString(v.Canonical())
		buf.WriteByte('\n')
	}
	sum := sha256.Sum256(buf.Bytes())
	return fmt.Sprintf("%x", sum)
}
