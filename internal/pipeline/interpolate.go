package pipeline

import (
	"fmt"
	"regexp"

	"github.com/buildkite/interpolate"
	"github.com/wheelhouse-ci/wheelhouse/internal/ordered"
)

// stringTransformer implementations mutate strings.
type stringTransformer interface {
	Transform(string) (string, error)
}

// selfInterpolater describes types that can interpolate themselves in place.
type selfInterpolater interface {
	interpolate(stringTransformer) error
}

// matrixSyntax marks transformers that operate on {{matrix...}} tokens. The
// matrix declaration itself is exempt from those.
type matrixSyntax interface {
	matrixTokens()
}

// envInterpolator applies old-school $VARIABLE substitution.
type envInterpolator struct {
	envMap interpolate.Env
}

func (e envInterpolator) Transform(s string) (string, error) {
	return interpolate.Interpolate(e.envMap, s)
}

// matrixTokenRE matches {{matrix.axis}} and the anonymous form {{matrix}}.
var matrixTokenRE = regexp.MustCompile(`\{\{\s*matrix(?:\.([\w.-]+))?\s*\}\}`)

// matrixInterpolator applies matrix assignment substitution.
type matrixInterpolator struct {
	values map[string]string
}

func newMatrixInterpolator(values map[string]string) matrixInterpolator {
	return matrixInterpolator{values: values}
}

func (matrixInterpolator) matrixTokens() {}

// Transform replaces every matrix token in s with the value assigned to its
// axis. A token naming an axis with no assigned value is an error: expansion
// leaves no token behind.
func (m matrixInterpolator) Transform(s string) (string, error) {
	var unknown []string

	replaced := matrixTokenRE.ReplaceAllStringFunc(s, func(token string) string {
		sub := matrixTokenRE.FindStringSubmatch(token)
		if v, has := m.values[sub[1]]; has {
			return v
		}
		unknown = append(unknown, token)
		return token
	})

	if len(unknown) > 0 {
		return "", fmt.Errorf("unknown matrix token %q", unknown[0])
	}
	return replaced, nil
}

// tokenCollector records the axis names referenced by matrix tokens. Its
// Transform is the identity, so it can be driven through the same
// interpolation plumbing without changing anything.
type tokenCollector struct {
	seen map[string]bool
}

func newTokenCollector() *tokenCollector {
	return &tokenCollector{seen: make(map[string]bool)}
}

func (*tokenCollector) matrixTokens() {}

func (c *tokenCollector) Transform(s string) (string, error) {
	for _, sub := range matrixTokenRE.FindAllStringSubmatch(s, -1) {
		c.seen[sub[1]] = true
	}
	return s, nil
}

func (c *tokenCollector) tokens() []string {
	out := make([]string, 0, len(c.seen))
	for tok := range c.seen {
		out = append(out, tok)
	}
	return out
}

// interpolateAny interpolates (almost) anything in place. The type
// parameter exists so that callers holding a string get a string back.
func interpolateAny[T any](tf stringTransformer, o T) (T, error) {
	var err error
	a := any(o)

	switch t := a.(type) {
	case selfInterpolater:
		err = t.interpolate(tf)
	case *string:
		if t != nil {
			*t, err = tf.Transform(*t)
		}
	case string:
		a, err = tf.Transform(t)
	case []any:
		err = interpolateSlice(tf, t)
	case []string:
		err = interpolateSlice(tf, t)
	case map[string]any:
		err = interpolateMap(tf, t)
	case map[string]string:
		err = interpolateMap(tf, t)
	case *ordered.MapSA:
		err = interpolateOrderedMap(tf, t)
	case *ordered.MapSS:
		err = interpolateOrderedMap(tf, t)
	default:
		return o, nil
	}

	if err != nil {
		var zt T
		return zt, err
	}
	return a.(T), nil
}

// interpolateSlice interpolates every element of a slice in place.
func interpolateSlice[E any, S ~[]E](tf stringTransformer, s S) error {
	for i, e := range s {
		inter, err := interpolateAny(tf, e)
		if err != nil {
			return err
		}
		s[i] = inter
	}
	return nil
}

// interpolateMap interpolates both keys and values in place.
func interpolateMap[V any, M ~map[string]V](tf stringTransformer, m M) error {
	// Tread carefully: iterating while deleting and re-adding keys.
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for _, k := range keys {
		intk, err := tf.Transform(k)
		if err != nil {
			return err
		}
		intv, err := interpolateAny(tf, m[k])
		if err != nil {
			return err
		}
		if intk != k {
			delete(m, k)
		}
		m[intk] = intv
	}
	return nil
}

// interpolateOrderedMap interpolates keys and values in place, keeping each
// item in its original position.
func interpolateOrderedMap[V any](tf stringTransformer, m *ordered.Map[string, V]) error {
	return m.Range(func(k string, v V) error {
		intk, err := tf.Transform(k)
		if err != nil {
			return err
		}
		intv, err := interpolateAny(tf, v)
		if err != nil {
			return err
		}
		m.Replace(k, intk, intv)
		return nil
	})
}
