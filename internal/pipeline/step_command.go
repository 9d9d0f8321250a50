package pipeline

import (
	"errors"
	"fmt"

	"github.com/wheelhouse-ci/wheelhouse/internal/ordered"
	"gopkg.in/yaml.v3"
)

// CommandStep models a step that runs a sequence of shell commands on some
// agent. If the step declares a matrix, it stands for one concrete step per
// matrix assignment - see Expand.
//
// Standard caveats apply - see the package comment.
type CommandStep struct {
	Label    string         `yaml:"label,omitempty"`
	Agents   *ordered.MapSS `yaml:"agents,omitempty"`
	Commands []string       `yaml:"commands,omitempty"`
	Env      *ordered.MapSS `yaml:"env,omitempty"`
	Matrix   *Matrix        `yaml:"matrix,omitempty"`

	// RemainingFields stores any other mapping items so they at least survive
	// an unmarshal-marshal round-trip.
	RemainingFields map[string]any `yaml:",inline"`
}

// UnmarshalYAML unmarshals a command step from a mapping node. "command" and
// "commands" are aliases for the same thing, as are "label" and "name".
func (c *CommandStep) UnmarshalYAML(n *yaml.Node) error {
	m := ordered.NewMap[string, *yaml.Node](len(n.Content) / 2)
	if err := n.Decode(m); err != nil {
		return err
	}

	return m.Range(func(k string, v *yaml.Node) error {
		switch k {
		case "label", "name":
			return v.Decode(&c.Label)

		case "command", "commands":
			cmds, err := decodeCommands(v)
			if err != nil {
				return fmt.Errorf("unmarshaling %s: %w", k, err)
			}
			c.Commands = append(c.Commands, cmds...)
			return nil

		case "agents":
			agents, err := decodeStringMap(v)
			if err != nil {
				return fmt.Errorf("unmarshaling agents: %w", err)
			}
			c.Agents = agents
			return nil

		case "env":
			env, err := decodeStringMap(v)
			if err != nil {
				return fmt.Errorf("unmarshaling env: %w", err)
			}
			c.Env = env
			return nil

		case "matrix":
			c.Matrix = new(Matrix)
			if err := v.Decode(c.Matrix); err != nil {
				return fmt.Errorf("unmarshaling matrix: %w", err)
			}
			return nil

		default:
			// Preserve any other key.
			val, err := ordered.DecodeYAML(v)
			if err != nil {
				return err
			}
			if c.RemainingFields == nil {
				c.RemainingFields = make(map[string]any)
			}
			c.RemainingFields[k] = val
			return nil
		}
	})
}

// MarshalJSON marshals the step to JSON. Special handling is needed because
// yaml.v3 has "inline" but encoding/json has no concept of it.
func (c *CommandStep) MarshalJSON() ([]byte, error) {
	return inlineFriendlyMarshalJSON(c)
}

// validate checks the shape of the step ahead of expansion. The errors it
// returns are wrapped into *ConfigError by Pipeline.Validate.
func (c *CommandStep) validate() error {
	if c.Label == "" {
		return errors.New("command step has no label")
	}

	if c.Matrix != nil {
		if err := c.Matrix.validate(); err != nil {
			return fmt.Errorf("step %q: %w", c.Label, err)
		}
	}

	// Every matrix placeholder must name a declared axis.
	for _, tok := range c.matrixTokens() {
		if !c.Matrix.HasAxis(tok) {
			if tok == "" {
				return fmt.Errorf("step %q uses {{matrix}} but does not declare an anonymous matrix axis", c.Label)
			}
			return fmt.Errorf("step %q uses {{matrix.%s}} but does not declare a matrix axis named %q", c.Label, tok, tok)
		}
	}

	return nil
}

// matrixTokens returns the axis names referenced by {{matrix...}} placeholders
// anywhere in the step (except inside the matrix declaration itself). The
// anonymous axis is returned as "".
func (c *CommandStep) matrixTokens() []string {
	tc := newTokenCollector()
	// The collector transform is the identity, so "interpolating" with it
	// leaves the step untouched.
	_ = c.interpolate(tc)
	return tc.tokens()
}

func (c *CommandStep) interpolate(tf stringTransformer) error {
	label, err := tf.Transform(c.Label)
	if err != nil {
		return err
	}

	if err := interpolateSlice(tf, c.Commands); err != nil {
		return err
	}
	if err := interpolateOrderedMap(tf, c.Agents); err != nil {
		return err
	}
	if err := interpolateOrderedMap(tf, c.Env); err != nil {
		return err
	}
	if err := c.Matrix.interpolate(tf); err != nil {
		return err
	}
	if err := interpolateMap(tf, c.RemainingFields); err != nil {
		return err
	}

	c.Label = label
	return nil
}

// clone returns a deep copy of the step.
func (c *CommandStep) clone() *CommandStep {
	out := &CommandStep{
		Label:           c.Label,
		Agents:          cloneOrderedMapSS(c.Agents),
		Env:             cloneOrderedMapSS(c.Env),
		Matrix:          c.Matrix.clone(),
		RemainingFields: cloneAnyMap(c.RemainingFields),
	}
	if c.Commands != nil {
		out.Commands = make([]string, len(c.Commands))
		copy(out.Commands, c.Commands)
	}
	return out
}

func (*CommandStep) stepTag() {}
