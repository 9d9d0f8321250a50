package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/buildkite/interpolate"
	"github.com/wheelhouse-ci/wheelhouse/internal/ordered"
	"gopkg.in/yaml.v3"
)

// Pipeline models a pipeline declaration.
//
// Standard caveats apply - see the package comment.
type Pipeline struct {
	Steps Steps          `yaml:"steps"`
	Env   *ordered.MapSS `yaml:"env,omitempty"`

	// RemainingFields stores any other top-level mapping items so they at
	// least survive an unmarshal-marshal round-trip.
	RemainingFields map[string]any `yaml:",inline"`
}

// MarshalJSON marshals a pipeline to JSON. Special handling is needed because
// yaml.v3 has "inline" but encoding/json has no concept of it.
func (p *Pipeline) MarshalJSON() ([]byte, error) {
	// Steps and Env have precedence over anything in RemainingFields.
	out := make(map[string]any, len(p.RemainingFields)+2)
	for k, v := range p.RemainingFields {
		if v != nil {
			out[k] = v
		}
	}

	out["steps"] = p.Steps
	if !p.Env.IsZero() {
		out["env"] = p.Env
	}

	return json.Marshal(out)
}

// UnmarshalYAML unmarshals a pipeline from YAML. A custom unmarshaler is
// needed since a pipeline document can either contain
//   - a sequence of steps (shorthand), or
//   - a mapping with "steps" as a top-level key, that contains the steps.
func (p *Pipeline) UnmarshalYAML(n *yaml.Node) error {
	// If given a document, unwrap it first.
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) != 1 {
			return fmt.Errorf("line %d, col %d: empty document", n.Line, n.Column)
		}
		n = n.Content[0]
	}

	switch n.Kind {
	case yaml.MappingNode:
		// Decode into a temporary map, using *yaml.Node values to only decode
		// the top level. "steps" and "env" get special treatment; any other
		// key is preserved.
		m := ordered.NewMap[string, *yaml.Node](len(n.Content) / 2)
		if err := n.Decode(m); err != nil {
			return err
		}

		err := m.Range(func(k string, v *yaml.Node) error {
			switch k {
			case "steps":
				return v.Decode(&p.Steps)

			case "env":
				env, err := decodeStringMap(v)
				if err != nil {
					return fmt.Errorf("unmarshaling env: %w", err)
				}
				p.Env = env
				return nil

			default:
				val, err := ordered.DecodeYAML(v)
				if err != nil {
					return err
				}
				if p.RemainingFields == nil {
					p.RemainingFields = make(map[string]any)
				}
				p.RemainingFields[k] = val
				return nil
			}
		})
		if err != nil {
			return err
		}
		if len(p.Steps) == 0 {
			return ErrNoSteps
		}

	case yaml.SequenceNode:
		// This sequence should be a sequence of steps.
		// No other bits (e.g. env) are present in the pipeline.
		return n.Decode(&p.Steps)

	default:
		return fmt.Errorf("line %d, col %d: unsupported YAML node kind %x for pipeline document contents", n.Line, n.Column, n.Kind)
	}

	return nil
}

// Interpolate interpolates variables (${FOO} and friends) into all the
// strings of the pipeline, using the given source of variable values.
// Matrix placeholders ({{matrix.*}}) use a different syntax and are not
// touched. Interpolate alters the pipeline in place, and should be applied
// once, between Parse and Validate.
func (p *Pipeline) Interpolate(envMap interpolate.Env) error {
	// The env block is interpolated first so its entries can be referenced
	// by the steps below it.
	if err := interpolateOrderedMap(envInterpolator{envMap: envMap}, p.Env); err != nil {
		return err
	}

	tf := envInterpolator{envMap: pipelineEnv{runtime: envMap, pipeline: p.Env}}
	if err := interpolateSlice(tf, p.Steps); err != nil {
		return err
	}
	return interpolateMap(tf, p.RemainingFields)
}

// pipelineEnv resolves variables from the runtime environment first, then
// from the pipeline's own env block.
type pipelineEnv struct {
	runtime  interpolate.Env
	pipeline *ordered.MapSS
}

func (e pipelineEnv) Get(key string) (string, bool) {
	if v, ok := e.runtime.Get(key); ok {
		return v, true
	}
	return e.pipeline.Get(key)
}

// Validate checks the declaration ahead of expansion: every command step must
// carry a label, matrix adjustments must line up with the declared axes, and
// every matrix placeholder must name a declared axis. All problems are
// reported as *ConfigError.
func (p *Pipeline) Validate() error {
	if len(p.Steps) == 0 {
		return wrapConfigError(ErrNoSteps)
	}
	for i, step := range p.Steps {
		cs, ok := step.(*CommandStep)
		if !ok {
			continue
		}
		if err := cs.validate(); err != nil {
			return wrapConfigError(fmt.Errorf("step %d: %w", i+1, err))
		}
	}
	return nil
}
