package ordered

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeYAML recursively unmarshals n into a generic type (any, []any, or
// *Map[string, any]) depending on the kind of n. Where yaml.v3 typically
// infers map[string]any for unmarshaling mappings into any, DecodeYAML
// chooses *Map[string, any] instead.
func DecodeYAML(n *yaml.Node) (any, error) {
	return decodeYAML(make(map[*yaml.Node]bool), n)
}

func decodeYAML(seen map[*yaml.Node]bool, n *yaml.Node) (any, error) {
	// nil decodes to nil.
	if n == nil {
		return nil, nil
	}

	// If n has been seen already while processing the parents of n, it's an
	// infinite recursion (an alias loop).
	if seen[n] {
		return nil, fmt.Errorf("line %d, col %d: infinite recursion", n.Line, n.Column)
	}
	seen[n] = true

	// The same alias can be validly used for different subtrees, so n must be
	// "un-seen" when this layer of recursion is done.
	defer delete(seen, n)

	switch n.Kind {
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil

	case yaml.SequenceNode:
		v := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			cv, err := decodeYAML(seen, c)
			if err != nil {
				return nil, err
			}
			v = append(v, cv)
		}
		return v, nil

	case yaml.MappingNode:
		m := NewMap[string, any](len(n.Content) / 2)
		// Not m.UnmarshalYAML(n), because `seen` can't be passed through that.
		err := rangeYAMLMap(n, func(key string, val *yaml.Node) error {
			v, err := decodeYAML(seen, val)
			if err != nil {
				return err
			}
			m.Set(key, v)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return m, nil

	case yaml.AliasNode:
		// This is one of the two ways decoding can blow up recursively.
		// The other (map merges) is handled by rangeYAMLMap.
		return decodeYAML(seen, n.Alias)

	case yaml.DocumentNode:
		switch len(n.Content) {
		case 0:
			return nil, nil
		case 1:
			return decodeYAML(seen, n.Content[0])
		default:
			return nil, fmt.Errorf("line %d, col %d: document contains more than 1 content item (%d)", n.Line, n.Column, len(n.Content))
		}

	default:
		return nil, fmt.Errorf("line %d, col %d: unsupported kind %x", n.Line, n.Column, n.Kind)
	}
}

// rangeYAMLMap calls f with each key/value pair in a mapping node.
// It only supports scalar keys, and converts them to canonical string values.
// Because mapping nodes can contain merges from other mapping nodes,
// potentially via sequence nodes and aliases, this function also accepts
// sequences and aliases (that must themselves recursively only contain
// mappings, sequences, and aliases...).
func rangeYAMLMap(n *yaml.Node, f func(key string, val *yaml.Node) error) error {
	return rangeYAMLMapImpl(make(map[*yaml.Node]bool), n, f)
}

// rangeYAMLMapImpl tracks mapping nodes already merged, to prevent infinite
// merge loops and avoid merging the same mapping repeatedly.
func rangeYAMLMapImpl(merged map[*yaml.Node]bool, n *yaml.Node, f func(key string, val *yaml.Node) error) error {
	// Go-like semantics: no entries in "nil".
	if n == nil {
		return nil
	}

	if merged[n] {
		return nil
	}
	merged[n] = true

	switch n.Kind {
	case yaml.MappingNode:
		// gopkg.in/yaml.v3 parses mapping node contents as a flat list:
		// key, value, key, value...
		if len(n.Content)%2 != 0 {
			return fmt.Errorf("line %d, col %d: mapping node has odd content length %d", n.Line, n.Column, len(n.Content))
		}

		// Keys at an outer level take precedence over keys being merged:
		// "its key/value pairs is inserted into the current mapping, unless
		// the key already exists in it." https://yaml.org/type/merge.html
		// But key ordering matters here, which necessitates two passes:
		// 1. Obtain the keys in this map.
		// 2. Range over the map again, recursing into merges.

		keys := make(map[string]bool)
		for i := 0; i < len(n.Content); i += 2 {
			k := n.Content[i]

			// Ignore merges in this pass.
			if k.Tag == "!!merge" {
				continue
			}

			ck, err := canonicalMapKey(k)
			if err != nil {
				return err
			}
			keys[ck] = true
		}

		// Ignore existing keys when merging. Record new keys to ignore in
		// subsequent merges.
		skipKeys := func(k string, v *yaml.Node) error {
			if keys[k] {
				return nil
			}
			keys[k] = true
			return f(k, v)
		}

		for i := 0; i < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]

			// Is this pair a merge? (`<<: *foo`)
			if k.Tag == "!!merge" {
				// The value could be an alias to a mapping node, or a sequence
				// of aliases to mapping nodes, which could themselves contain
				// merges...
				if err := rangeYAMLMapImpl(merged, v, skipKeys); err != nil {
					return err
				}
				continue
			}

			ck, err := canonicalMapKey(k)
			if err != nil {
				return err
			}

			if err := f(ck, v); err != nil {
				return err
			}
		}

	case yaml.SequenceNode:
		for _, e := range n.Content {
			if err := rangeYAMLMapImpl(merged, e, f); err != nil {
				return err
			}
		}

	case yaml.AliasNode:
		if err := rangeYAMLMapImpl(merged, n.Alias, f); err != nil {
			return err
		}

	default:
		return fmt.Errorf("line %d, col %d: cannot range over node kind %x", n.Line, n.Column, n.Kind)
	}
	return nil
}

// canonicalMapKey converts a scalar value into a string suitable for use as
// a map key. YAML expects different representations of the same value, e.g.
// 0xb and 11, to be equivalent, and therefore a duplicate key. JSON requires
// all keys to be strings.
func canonicalMapKey(n *yaml.Node) (string, error) {
	var x any
	if err := n.Decode(&x); err != nil {
		return "", err
	}
	if x == nil || n.Tag == "!!null" {
		// Nulls are not valid JSON keys.
		return "", fmt.Errorf("line %d, col %d: null not supported as a map key", n.Line, n.Column)
	}
	switch n.Tag {
	case "!!bool":
		return fmt.Sprintf("%t", x), nil
	case "!!int":
		return fmt.Sprintf("%d", x), nil
	case "!!float":
		return fmt.Sprintf("%e", x), nil
	default:
		// Assume the value is already a suitable key.
		return n.Value, nil
	}
}
