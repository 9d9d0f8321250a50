package pipeline

import (
	"errors"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse parses a pipeline declaration. It does not apply interpolation or
// validation - see Interpolate and Validate.
func Parse(src io.Reader) (*Pipeline, error) {
	// First get yaml.v3 to give us a raw document (*yaml.Node). Decoding the
	// node ourselves (rather than straight into structs) resolves aliases and
	// merges, and preserves mapping order where it matters (matrix axes).
	n := new(yaml.Node)
	if err := yaml.NewDecoder(src).Decode(n); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, wrapConfigError(ErrNoSteps)
		}
		return nil, wrapConfigError(formatYAMLError(err))
	}

	p := new(Pipeline)
	if err := p.UnmarshalYAML(n); err != nil {
		return nil, wrapConfigError(formatYAMLError(err))
	}
	return p, nil
}

func formatYAMLError(err error) error {
	return errors.New(strings.TrimPrefix(err.Error(), "yaml: "))
}
