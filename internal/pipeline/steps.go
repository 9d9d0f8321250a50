package pipeline

import (
	"fmt"

	"github.com/wheelhouse-ci/wheelhouse/internal/ordered"
	"gopkg.in/yaml.v3"
)

// Steps contains multiple steps. It is useful for unmarshaling step
// sequences, since it has custom logic for determining the correct step type.
type Steps []Step

// UnmarshalYAML unmarshals a sequence (of steps). An error wrapping
// ErrNoSteps is returned if given an empty sequence.
func (s *Steps) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d, col %d: wrong node kind %v for step sequence", n.Line, n.Column, n.Kind)
	}
	if len(n.Content) == 0 {
		return fmt.Errorf("line %d, col %d: %w", n.Line, n.Column, ErrNoSteps)
	}

	seen := make(map[*yaml.Node]bool)
	for _, c := range n.Content {
		step, err := unmarshalStep(seen, c)
		if err != nil {
			return err
		}
		*s = append(*s, step)
	}
	return nil
}

func (s Steps) interpolate(tf stringTransformer) error {
	return interpolateSlice(tf, s)
}

var validStepScalars = []string{"block", "manual", "wait", "waiter"}

// NewScalarStep returns the step encoded by a lone scalar, e.g. "wait".
func NewScalarStep(v string) (Step, error) {
	switch v {
	case "block", "manual":
		return &BlockStep{Scalar: v}, nil
	case "wait", "waiter":
		return &WaitStep{Scalar: v}, nil
	default:
		return nil, fmt.Errorf("unsupported scalar step %q, want one of %v", v, validStepScalars)
	}
}

// unmarshalStep unmarshals a step (usually a mapping node, but possibly a
// scalar string) into the right kind of Step.
func unmarshalStep(seen map[*yaml.Node]bool, n *yaml.Node) (Step, error) {
	// Prevents infinite recursion through aliases.
	seen[n] = true
	defer delete(seen, n)

	switch n.Kind {
	case yaml.AliasNode:
		if seen[n.Alias] {
			return nil, fmt.Errorf("line %d, col %d: infinite recursion", n.Line, n.Column)
		}
		return unmarshalStep(seen, n.Alias)

	case yaml.ScalarNode:
		if n.Tag != "!!str" {
			// What kind of step is represented as a non-string scalar?
			return nil, fmt.Errorf("line %d, col %d: invalid step (scalar tag = %q, value = %q)", n.Line, n.Column, n.Tag, n.Value)
		}
		step, err := NewScalarStep(n.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d, col %d: %w", n.Line, n.Column, err)
		}
		return step, nil

	case yaml.MappingNode:
		// Decode into a temporary map. Use *yaml.Node as the value to only
		// decode the top level.
		m := ordered.NewMap[string, *yaml.Node](len(n.Content) / 2)
		if err := n.Decode(m); err != nil {
			return nil, err
		}

		var step Step
		switch {
		case m.Contains("block") || m.Contains("manual"):
			step = new(BlockStep)

		case m.Contains("wait") || m.Contains("waiter"):
			step = new(WaitStep)

		case m.Contains("command") || m.Contains("commands") || m.Contains("label") || m.Contains("name"):
			step = new(CommandStep)

		default:
			return nil, fmt.Errorf("line %d, col %d: unknown step type - a step must have one of %q", n.Line, n.Column, []string{"block", "wait", "label", "command"})
		}

		// Decode the step (into the right step type).
		if err := n.Decode(step); err != nil {
			return nil, err
		}
		return step, nil

	default:
		return nil, fmt.Errorf("line %d, col %d: unsupported YAML node kind %x for step", n.Line, n.Column, n.Kind)
	}
}
