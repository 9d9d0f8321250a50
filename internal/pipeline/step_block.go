package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/wheelhouse-ci/wheelhouse/internal/ordered"
	"gopkg.in/yaml.v3"
)

// BlockStep models a manual-approval gate. The external engine (or the local
// runner) halts automatic progression at a block step until someone approves
// it.
//
// A block step can be represented either by the lone scalar "block" (or
// "manual"), or by a mapping with a "block" key whose value is the gate's
// label. If the step came from a scalar, Scalar records which one, and the
// other fields are empty.
type BlockStep struct {
	Scalar string `yaml:"-"`
	Block  string `yaml:"block"`

	// RemainingFields stores any other mapping items (prompt, fields, ...) so
	// they at least survive an unmarshal-marshal round-trip.
	RemainingFields map[string]any `yaml:",inline"`
}

// Label returns the gate's label, or a placeholder if it has none.
func (s *BlockStep) Label() string {
	if s.Block != "" {
		return s.Block
	}
	return "block"
}

// UnmarshalYAML unmarshals a block step from a mapping node.
func (s *BlockStep) UnmarshalYAML(n *yaml.Node) error {
	m := ordered.NewMap[string, *yaml.Node](len(n.Content) / 2)
	if err := n.Decode(m); err != nil {
		return err
	}

	return m.Range(func(k string, v *yaml.Node) error {
		switch k {
		case "block", "manual":
			return v.Decode(&s.Block)

		default:
			val, err := ordered.DecodeYAML(v)
			if err != nil {
				return err
			}
			if s.RemainingFields == nil {
				s.RemainingFields = make(map[string]any)
			}
			s.RemainingFields[k] = val
			return nil
		}
	})
}

// MarshalYAML marshals the step back to its scalar form if that's how it was
// written, and a mapping otherwise.
func (s *BlockStep) MarshalYAML() (any, error) {
	if s.Scalar != "" {
		return s.Scalar, nil
	}
	// Wrap in a type without a MarshalYAML method to avoid infinite
	// recursion.
	type wrappedBlock BlockStep
	return (*wrappedBlock)(s), nil
}

// MarshalJSON marshals the step as its scalar if it has one, and as a mapping
// otherwise. Special handling is needed because yaml.v3 has "inline" but
// encoding/json has no concept of it.
func (s *BlockStep) MarshalJSON() ([]byte, error) {
	if s.Scalar != "" {
		return json.Marshal(s.Scalar)
	}
	return inlineFriendlyMarshalJSON(s)
}

func (s *BlockStep) interpolate(tf stringTransformer) error {
	block, err := tf.Transform(s.Block)
	if err != nil {
		return err
	}
	if err := interpolateMap(tf, s.RemainingFields); err != nil {
		return err
	}
	s.Block = block
	return nil
}

func (s *BlockStep) clone() *BlockStep {
	return &BlockStep{
		Scalar:          s.Scalar,
		Block:           s.Block,
		RemainingFields: cloneAnyMap(s.RemainingFields),
	}
}

func (*BlockStep) stepTag() {}

var _ fmt.Stringer = (*BlockStep)(nil)

func (s *BlockStep) String() string { return s.Label() }
