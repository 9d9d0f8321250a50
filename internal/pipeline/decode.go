package pipeline

import (
	"fmt"
	"strings"

	"github.com/wheelhouse-ci/wheelhouse/internal/ordered"
	"gopkg.in/yaml.v3"
)

// decodeStringMap decodes a mapping of scalars (such as "env" or "agents")
// into an insertion-ordered string map. Non-string scalar values are
// canonicalised with fmt.Sprint, so e.g. `python: 3.10` works as expected.
// A sequence of "KEY=value" strings is accepted as an alternative spelling.
func decodeStringMap(n *yaml.Node) (*ordered.MapSS, error) {
	switch n.Kind {
	case yaml.MappingNode:
		src := ordered.NewMap[string, any](len(n.Content) / 2)
		if err := n.Decode(src); err != nil {
			return nil, err
		}
		out := ordered.NewMap[string, string](src.Len())
		err := src.Range(func(k string, v any) error {
			switch v.(type) {
			case nil:
				out.Set(k, "")
			case string, int, int64, uint64, float64, bool:
				out.Set(k, fmt.Sprint(v))
			default:
				return fmt.Errorf("value for key %q is not a scalar (got %T)", k, v)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil

	case yaml.SequenceNode:
		var items []string
		if err := n.Decode(&items); err != nil {
			return nil, err
		}
		out := ordered.NewMap[string, string](len(items))
		for _, item := range items {
			k, v, ok := strings.Cut(item, "=")
			if !ok {
				return nil, fmt.Errorf("item %q is not in KEY=value form", item)
			}
			out.Set(k, v)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("line %d, col %d: wanted mapping or sequence, got %v", n.Line, n.Column, n.Kind)
	}
}

// decodeCommands decodes a "command" or "commands" value, which can be either
// a single string or a sequence of strings.
func decodeCommands(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		var cmd string
		if err := n.Decode(&cmd); err != nil {
			return nil, err
		}
		return []string{cmd}, nil

	case yaml.SequenceNode:
		var cmds []string
		if err := n.Decode(&cmds); err != nil {
			return nil, err
		}
		return cmds, nil

	default:
		return nil, fmt.Errorf("line %d, col %d: wanted scalar or sequence, got %v", n.Line, n.Column, n.Kind)
	}
}

// cloneAny deep-copies the values that ordered.DecodeYAML produces.
func cloneAny(src any) any {
	switch v := src.(type) {
	case *ordered.MapSA:
		return cloneOrderedMapSA(v)
	case map[string]any:
		return cloneAnyMap(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneAny(e)
		}
		return out
	default:
		// Scalars are immutable.
		return src
	}
}

func cloneAnyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneOrderedMapSS(src *ordered.MapSS) *ordered.MapSS {
	if src == nil {
		return nil
	}
	out := ordered.NewMap[string, string](src.Len())
	_ = src.Range(func(k, v string) error {
		out.Set(k, v)
		return nil
	})
	return out
}

func cloneOrderedMapSA(src *ordered.MapSA) *ordered.MapSA {
	if src == nil {
		return nil
	}
	out := ordered.NewMap[string, any](src.Len())
	_ = src.Range(func(k string, v any) error {
		out.Set(k, cloneAny(v))
		return nil
	})
	return out
}
