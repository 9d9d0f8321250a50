package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wheelhouse-ci/wheelhouse/internal/ordered"
	"gopkg.in/yaml.v3"
)

// Matrix models the matrix declaration of a command step. Two YAML forms are
// accepted: a bare sequence of values, which declares a single anonymous axis,
// and a mapping with "setup" (and optionally "adjustments") keys.
type Matrix struct {
	Setup       MatrixSetup       `yaml:"setup"`
	Adjustments MatrixAdjustments `yaml:"adjustments,omitempty"`

	RemainingFields map[string]any `yaml:",inline"`
}

// MatrixSetup is the set of axes in declaration order. Declaration order
// matters: expansion varies the last axis fastest.
type MatrixSetup []MatrixAxis

// MatrixAxis is a named axis and its values. The anonymous axis (from the
// bare-sequence form) has Name == "".
type MatrixAxis struct {
	Name   string
	Values []string
}

// MatrixAdjustments are adjustments to apply after the setup product.
type MatrixAdjustments []*MatrixAdjustment

// MatrixAdjustment models an adjustment: a full assignment of the axes, plus
// an optional skip.
type MatrixAdjustment struct {
	With *ordered.MapSS `yaml:"with"`
	Skip any            `yaml:"skip,omitempty"`

	RemainingFields map[string]any `yaml:",inline"`
}

// ShouldSkip reports whether the adjustment skips its assignment. skip can be
// a bool or a reason string.
func (a *MatrixAdjustment) ShouldSkip() bool {
	switch s := a.Skip.(type) {
	case bool:
		return s
	case string:
		return s != ""
	case nil:
		return false
	default:
		return true
	}
}

func (m *Matrix) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		// matrix:
		//   - value
		values, err := decodeAxisValues(n)
		if err != nil {
			return err
		}
		m.Setup = MatrixSetup{{Name: "", Values: values}}
		return nil

	case yaml.MappingNode:
		// matrix:
		//   setup: ...
		//   adjustments: ...
		sm := ordered.NewMap[string, *yaml.Node](len(n.Content) / 2)
		if err := n.Decode(sm); err != nil {
			return err
		}
		return sm.Range(func(k string, v *yaml.Node) error {
			switch k {
			case "setup":
				return v.Decode(&m.Setup)
			case "adjustments":
				return v.Decode(&m.Adjustments)
			default:
				val, err := ordered.DecodeYAML(v)
				if err != nil {
					return err
				}
				if m.RemainingFields == nil {
					m.RemainingFields = make(map[string]any)
				}
				m.RemainingFields[k] = val
				return nil
			}
		})

	default:
		return fmt.Errorf("line %d, col %d: wanted sequence or mapping for matrix, got %v", n.Line, n.Column, n.Kind)
	}
}

func (s *MatrixSetup) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		// setup:
		//   - value
		values, err := decodeAxisValues(n)
		if err != nil {
			return err
		}
		*s = MatrixSetup{{Name: "", Values: values}}
		return nil

	case yaml.MappingNode:
		// setup:
		//   axis:
		//     - value
		sm := ordered.NewMap[string, *yaml.Node](len(n.Content) / 2)
		if err := n.Decode(sm); err != nil {
			return err
		}
		return sm.Range(func(k string, v *yaml.Node) error {
			values, err := decodeAxisValues(v)
			if err != nil {
				return fmt.Errorf("axis %q: %w", k, err)
			}
			*s = append(*s, MatrixAxis{Name: k, Values: values})
			return nil
		})

	default:
		return fmt.Errorf("line %d, col %d: wanted sequence or mapping for matrix setup, got %v", n.Line, n.Column, n.Kind)
	}
}

func (a *MatrixAdjustment) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d, col %d: wanted mapping for matrix adjustment, got %v", n.Line, n.Column, n.Kind)
	}
	sm := ordered.NewMap[string, *yaml.Node](len(n.Content) / 2)
	if err := n.Decode(sm); err != nil {
		return err
	}
	return sm.Range(func(k string, v *yaml.Node) error {
		switch k {
		case "with":
			switch v.Kind {
			case yaml.ScalarNode:
				// Adjusting the anonymous axis.
				var val string
				if err := v.Decode(&val); err != nil {
					return err
				}
				a.With = ordered.NewMap[string, string](1)
				a.With.Set("", val)
				return nil
			default:
				with, err := decodeStringMap(v)
				if err != nil {
					return fmt.Errorf("unmarshaling with: %w", err)
				}
				a.With = with
				return nil
			}

		case "skip":
			return v.Decode(&a.Skip)

		default:
			val, err := ordered.DecodeYAML(v)
			if err != nil {
				return err
			}
			if a.RemainingFields == nil {
				a.RemainingFields = make(map[string]any)
			}
			a.RemainingFields[k] = val
			return nil
		}
	})
}

// decodeAxisValues decodes a sequence of scalars into canonical strings.
// Nested sequences and mappings are rejected: axis values must be scalar.
func decodeAxisValues(n *yaml.Node) ([]string, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d, col %d: wanted sequence of axis values, got %v", n.Line, n.Column, n.Kind)
	}
	values := make([]string, 0, len(n.Content))
	for _, c := range n.Content {
		if c.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d, col %d: axis values must be scalar, got %v", c.Line, c.Column, c.Kind)
		}
		var v any
		if err := c.Decode(&v); err != nil {
			return nil, err
		}
		values = append(values, fmt.Sprint(v))
	}
	return values, nil
}

// MarshalYAML returns the bare-sequence form for a single anonymous axis with
// no adjustments, and the setup/adjustments mapping otherwise.
func (m *Matrix) MarshalYAML() (any, error) {
	if m.isSimple() {
		return m.Setup[0].Values, nil
	}
	om := ordered.NewMap[string, any](2 + len(m.RemainingFields))
	om.Set("setup", m.Setup)
	if len(m.Adjustments) > 0 {
		om.Set("adjustments", m.Adjustments)
	}
	for k, v := range m.RemainingFields {
		om.Set(k, v)
	}
	return om, nil
}

func (m *Matrix) MarshalJSON() ([]byte, error) {
	v, err := m.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (s MatrixSetup) MarshalYAML() (any, error) {
	if len(s) == 1 && s[0].Name == "" {
		return s[0].Values, nil
	}
	om := ordered.NewMap[string, any](len(s))
	for _, axis := range s {
		om.Set(axis.Name, axis.Values)
	}
	return om, nil
}

func (s MatrixSetup) MarshalJSON() ([]byte, error) {
	v, err := s.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (a *MatrixAdjustment) MarshalYAML() (any, error) {
	om := ordered.NewMap[string, any](2 + len(a.RemainingFields))
	if a.With.Len() == 1 && a.With.Contains("") {
		v, _ := a.With.Get("")
		om.Set("with", v)
	} else {
		om.Set("with", a.With)
	}
	if a.Skip != nil {
		om.Set("skip", a.Skip)
	}
	for k, v := range a.RemainingFields {
		om.Set(k, v)
	}
	return om, nil
}

func (a *MatrixAdjustment) MarshalJSON() ([]byte, error) {
	v, err := a.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// isSimple reports whether the matrix can round-trip through the
// bare-sequence form.
func (m *Matrix) isSimple() bool {
	return len(m.Setup) == 1 && m.Setup[0].Name == "" &&
		len(m.Adjustments) == 0 && len(m.RemainingFields) == 0
}

// HasAxis reports whether the matrix declares an axis with the given name.
// A nil matrix declares no axes.
func (m *Matrix) HasAxis(name string) bool {
	if m == nil {
		return false
	}
	for _, axis := range m.Setup {
		if axis.Name == name {
			return true
		}
	}
	return false
}

// validate checks the internal consistency of the matrix declaration.
func (m *Matrix) validate() error {
	if m == nil {
		return nil
	}
	if len(m.Setup) == 0 {
		return errors.New("matrix setup declares no axes")
	}
	seen := make(map[string]bool, len(m.Setup))
	for _, axis := range m.Setup {
		if seen[axis.Name] {
			return fmt.Errorf("matrix setup declares axis %q more than once", axis.Name)
		}
		seen[axis.Name] = true
		if len(axis.Values) == 0 {
			return fmt.Errorf("matrix axis %q has no values", axis.Name)
		}
	}
	for i, adj := range m.Adjustments {
		if adj.With.Len() != len(m.Setup) {
			return fmt.Errorf("matrix adjustment %d must assign every axis (wanted %d, got %d)", i, len(m.Setup), adj.With.Len())
		}
		err := adj.With.Range(func(k, _ string) error {
			if !seen[k] {
				return fmt.Errorf("matrix adjustment %d assigns undeclared axis %q", i, k)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// interpolate applies the transformer to axis values, adjustments, and any
// remaining fields. Transformers for matrix token syntax are skipped: the
// matrix declaration is the source of those tokens, not a target.
func (m *Matrix) interpolate(tf stringTransformer) error {
	if m == nil {
		return nil
	}
	if _, is := tf.(matrixSyntax); is {
		return nil
	}
	for i := range m.Setup {
		if err := interpolateSlice(tf, m.Setup[i].Values); err != nil {
			return err
		}
	}
	for _, adj := range m.Adjustments {
		if err := interpolateOrderedMap(tf, adj.With); err != nil {
			return err
		}
		if err := interpolateMap(tf, adj.RemainingFields); err != nil {
			return err
		}
	}
	return interpolateMap(tf, m.RemainingFields)
}

// clone returns a deep copy of the matrix.
func (m *Matrix) clone() *Matrix {
	if m == nil {
		return nil
	}
	out := &Matrix{
		Setup:           make(MatrixSetup, len(m.Setup)),
		RemainingFields: cloneAnyMap(m.RemainingFields),
	}
	for i, axis := range m.Setup {
		values := make([]string, len(axis.Values))
		copy(values, axis.Values)
		out.Setup[i] = MatrixAxis{Name: axis.Name, Values: values}
	}
	if m.Adjustments != nil {
		out.Adjustments = make(MatrixAdjustments, len(m.Adjustments))
		for i, adj := range m.Adjustments {
			out.Adjustments[i] = &MatrixAdjustment{
				With:            cloneOrderedMapSS(adj.With),
				Skip:            adj.Skip,
				RemainingFields: cloneAnyMap(adj.RemainingFields),
			}
		}
	}
	return out
}
