package params

import (
	"errors"
	"fmt"
	"math"
)

// ErrEmptySpace is returned when a space has no parameters or yields no combinations
var ErrEmptySpace = errors.New("parameter space is empty")

// Parameter describes one tunable dimension of a strategy
type Parameter struct {
	Name   string   `json:"name"`
	Type   Kind     `json:"type"`
	Min    float64  `json:"min,omitempty"`
	Max    float64  `json:"max,omitempty"`
	Step   float64  `json:"step,omitempty"`
	Values []string `json:"values,omitempty"`
}

// Space is an ordered list of parameters enumerated as a grid
type Space struct {
	Parameters []Parameter `json:"parameters"`
}

// NewSpace builds a space from parameters
func NewSpace(parameters ...Parameter) Space {
	return Space{Parameters: append([]Parameter(nil), parameters...)}
}

// Validate checks the space for configuration errors
func (s Space) Validate() error {
	if len(s.Parameters) == 0 {
		return ErrEmptySpace
	}
	seen := make(map[string]bool, len(s.Parameters))
	for _, p := range s.Parameters {
		if p.Name == "" {
			return fmt.Errorf("parameter name is required")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate parameter %q", p.Name)
		}
		seen[p.Name] = true
		if err := p.validate(); err != nil {
			return fmt.Errorf("parameter %q: %w", p.Name, err)
		}
	}
	if s.Size() > MaxCombinations {
		return fmt.Errorf("parameter space exceeds %d combinations", MaxCombinations)
	}
	return nil
}

// Limits keep grid enumeration bounded. Integer bounds beyond maxExactInt
// cannot be represented exactly in the float64 fields.
const (
	MaxGridPoints   = 1_000_000
	MaxCombinations = 10_000_000
	maxExactInt     = 1 << 53
)

func (p Parameter) validate() error {
	switch p.Type {
	case KindInt, KindFloat:
		if !isFinite(p.Min) || !isFinite(p.Max) || !isFinite(p.Step) {
			return fmt.Errorf("bounds and step must be finite numbers")
		}
		if p.Min > p.Max {
			return fmt.Errorf("min %v exceeds max %v", p.Min, p.Max)
		}
		if p.Step <= 0 {
			return fmt.Errorf("step must be positive")
		}
		if p.Type == KindInt {
			if p.Step < 1 || p.Step != math.Trunc(p.Step) {
				return fmt.Errorf("integer step must be a whole number of at least 1")
			}
			if math.Abs(p.Min) > maxExactInt || math.Abs(p.Max) > maxExactInt || p.Step > maxExactInt {
				return fmt.Errorf("integer bounds must be within ±%d", int64(maxExactInt))
			}
		}
		n, ok := p.points()
		if !ok || n > MaxGridPoints {
			return fmt.Errorf("grid exceeds %d points", MaxGridPoints)
		}
		if n == 0 {
			return fmt.Errorf("range [%v, %v] holds no grid points", p.Min, p.Max)
		}
	case KindBool:
	case KindString:
		if len(p.Values) == 0 {
			return fmt.Errorf("categorical parameter needs at least one value")
		}
	default:
		return fmt.Errorf("unknown parameter type %d", p.Type)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// points counts numeric grid points without enumerating them. ok is false
// when the bounds are unusable or the count does not fit the grid limit.
func (p Parameter) points() (int, bool) {
	if !isFinite(p.Min) || !isFinite(p.Max) || !isFinite(p.Step) || p.Step <= 0 {
		return 0, false
	}
	var span float64
	switch p.Type {
	case KindInt:
		if p.Step < 1 || math.Abs(p.Min) > maxExactInt || math.Abs(p.Max) > maxExactInt {
			return 0, false
		}
		lo, hi := math.Ceil(p.Min), math.Floor(p.Max)
		if lo > hi {
			return 0, true
		}
		span = math.Floor((hi - lo) / math.Trunc(p.Step))
	case KindFloat:
		if p.Min > p.Max {
			return 0, true
		}
		span = math.Floor((p.Max-p.Min)/p.Step + 1e-9)
	default:
		return 0, false
	}
	if !isFinite(span) || span >= MaxGridPoints {
		return 0, false
	}
	return int(span) + 1, true
}

// Grid returns the ordered candidate values of the parameter. Numeric
// parameters with unusable or oversized bounds yield no values.
func (p Parameter) Grid() []Value {
	switch p.Type {
	case KindInt:
		n, ok := p.points()
		if !ok {
			return nil
		}
		out := make([]Value, 0, n)
		lo := int64(math.Ceil(p.Min))
		step := int64(p.Step)
		for i := 0; i < n; i++ {
			out = append(out, Int(lo+int64(i)*step))
		}
		return out
	case KindFloat:
		n, ok := p.points()
		if !ok {
			return nil
		}
		out := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, Float(p.Min+float64(i)*p.Step))
		}
		return out
	case KindBool:
		return []Value{Bool(false), Bool(true)}
	case KindString:
		out := make([]Value, 0, len(p.Values))
		for _, v := range p.Values {
			out = append(out, String(v))
		}
		return out
	default:
		return nil
	}
}

// Size returns the number of combinations in the grid
func (s Space) Size() int {
	if len(s.Parameters) == 0 {
		return 0
	}
	total := 1
	for _, p := range s.Parameters {
		n := p.size()
		if n == 0 {
			return 0
		}
		if total > math.MaxInt/n {
			return math.MaxInt
		}
		total *= n
	}
	return total
}

func (p Parameter) size() int {
	switch p.Type {
	case KindInt, KindFloat:
		n, ok := p.points()
		if !ok {
			return 0
		}
		return n
	case KindBool:
		return 2
	case KindString:
		return len(p.Values)
	default:
		return 0
	}
}

// Combinations enumerates the full grid in a deterministic order:
// the first parameter varies slowest.
func (s Space) Combinations() []Combination {
	if len(s.Parameters) == 0 {
		return nil
	}
	grids := make([][]Value, len(s.Parameters))
	for i, p := range s.Parameters {
		grids[i] = p.Grid()
		if len(grids[i]) == 0 {
			return nil
		}
	}

	size := s.Size()
	if size > MaxCombinations {
		return nil
	}
	out := make([]Combination, 0, size)
	current := make(map[string]Value, len(s.Parameters))
	var walk func(idx int)
	walk = func(idx int) {
		if idx == len(s.Parameters) {
			out = append(out, NewCombination(current))
			return
		}
		name := s.Parameters[idx].Name
		for _, v := range grids[idx] {
			current[name] = v
			walk(idx + 1)
		}
	}
	walk(0)
	return out
}
