package pipeline

import (
	"encoding/json"

	"github.com/wheelhouse-ci/wheelhouse/internal/ordered"
	"gopkg.in/yaml.v3"
)

// WaitStep models a barrier: all steps before it must finish before any step
// after it starts. A sequential runner treats it as a no-op. It can be
// represented by the lone scalar "wait" (or "waiter"), or by a mapping.
type WaitStep struct {
	Scalar string `yaml:"-"`

	// RemainingFields stores the mapping items (wait, continue_on_failure,
	// ...) so they at least survive an unmarshal-marshal round-trip.
	RemainingFields map[string]any `yaml:",inline"`
}

// UnmarshalYAML unmarshals a wait step from a mapping node.
func (s *WaitStep) UnmarshalYAML(n *yaml.Node) error {
	m := ordered.NewMap[string, *yaml.Node](len(n.Content) / 2)
	if err := n.Decode(m); err != nil {
		return err
	}

	return m.Range(func(k string, v *yaml.Node) error {
		val, err := ordered.DecodeYAML(v)
		if err != nil {
			return err
		}
		if s.RemainingFields == nil {
			s.RemainingFields = make(map[string]any)
		}
		s.RemainingFields[k] = val
		return nil
	})
}

// MarshalYAML marshals a wait step as "wait" if it is empty, or as its
// mapping form otherwise.
func (s *WaitStep) MarshalYAML() (any, error) {
	if s.Scalar != "" {
		return s.Scalar, nil
	}
	if len(s.RemainingFields) == 0 {
		return "wait", nil
	}
	return s.RemainingFields, nil
}

// MarshalJSON marshals a wait step as "wait" if it is empty, or as a mapping
// otherwise.
func (s *WaitStep) MarshalJSON() ([]byte, error) {
	if s.Scalar != "" {
		return json.Marshal(s.Scalar)
	}
	if len(s.RemainingFields) == 0 {
		return json.Marshal("wait")
	}
	return json.Marshal(s.RemainingFields)
}

func (s *WaitStep) interpolate(tf stringTransformer) error {
	return interpolateMap(tf, s.RemainingFields)
}

func (s *WaitStep) clone() *WaitStep {
	return &WaitStep{
		Scalar:          s.Scalar,
		RemainingFields: cloneAnyMap(s.RemainingFields),
	}
}

func (*WaitStep) stepTag() {}
