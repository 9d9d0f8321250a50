package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wheelhouse-ci/wheelhouse/internal/ordered"
)

var cmpOpts = []cmp.Option{
	cmp.Comparer(ordered.EqualSS),
	cmp.Comparer(ordered.EqualSA),
}

func TestParseMappingPipeline(t *testing.T) {
	t.Parallel()

	input := strings.NewReader(`---
env:
  WHEEL_TAG: nightly
steps:
  - label: ":python: Build wheel"
    agents:
      queue: gpu-builders
    commands:
      - docker build --tag wheelbuilder .
      - docker run wheelbuilder
  - block: "Ship it?"
  - wait
  - label: ":rocket: Publish"
    command: ./publish.sh
`)
	got, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(input) error = %v", err)
	}

	want := &Pipeline{
		Env: ordered.MapFromItems(
			ordered.TupleSS{Key: "WHEEL_TAG", Value: "nightly"},
		),
		Steps: Steps{
			&CommandStep{
				Label: ":python: Build wheel",
				Agents: ordered.MapFromItems(
					ordered.TupleSS{Key: "queue", Value: "gpu-builders"},
				),
				Commands: []string{
					"docker build --tag wheelbuilder .",
					"docker run wheelbuilder",
				},
			},
			&BlockStep{Block: "Ship it?"},
			&WaitStep{Scalar: "wait"},
			&CommandStep{
				Label:    ":rocket: Publish",
				Commands: []string{"./publish.sh"},
			},
		},
	}
	if diff := cmp.Diff(got, want, cmpOpts...); diff != "" {
		t.Errorf("parsed pipeline diff (-got +want):\n%s", diff)
	}
}

func TestParseSequencePipeline(t *testing.T) {
	t.Parallel()

	input := strings.NewReader(`---
- name: "Build"
  command: make
- wait
- manual
`)
	got, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(input) error = %v", err)
	}

	want := &Pipeline{
		Steps: Steps{
			&CommandStep{Label: "Build", Commands: []string{"make"}},
			&WaitStep{Scalar: "wait"},
			&BlockStep{Scalar: "manual"},
		},
	}
	if diff := cmp.Diff(got, want, cmpOpts...); diff != "" {
		t.Errorf("parsed pipeline diff (-got +want):\n%s", diff)
	}
}

func TestParseNormalisesScalarEnvValues(t *testing.T) {
	t.Parallel()

	input := strings.NewReader(`---
env:
  PYTHON: 3.10
  DEBUG: true
  RETRIES: 3
steps:
  - label: x
    command: echo
`)
	got, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(input) error = %v", err)
	}

	want := ordered.MapFromItems(
		ordered.TupleSS{Key: "PYTHON", Value: "3.1"},
		ordered.TupleSS{Key: "DEBUG", Value: "true"},
		ordered.TupleSS{Key: "RETRIES", Value: "3"},
	)
	// YAML parses 3.10 as the float 3.1, which is almost never what anyone
	// means, but it is what they wrote. Quoting is on the user.
	if !ordered.EqualSS(got.Env, want) {
		t.Errorf("parsed env = %v, want %v", got.Env, want)
	}
}

func TestParsePreservesUnknownFields(t *testing.T) {
	t.Parallel()

	input := strings.NewReader(`---
notify:
  - email: dev@example.com
steps:
  - label: x
    command: echo
    timeout_in_minutes: 30
`)
	p, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(input) error = %v", err)
	}

	if _, has := p.RemainingFields["notify"]; !has {
		t.Errorf("p.RemainingFields = %v, want a notify key", p.RemainingFields)
	}
	cs, ok := p.Steps[0].(*CommandStep)
	if !ok {
		t.Fatalf("p.Steps[0] is %T, want *CommandStep", p.Steps[0])
	}
	if got, want := cs.RemainingFields["timeout_in_minutes"], 30; got != want {
		t.Errorf("cs.RemainingFields[timeout_in_minutes] = %v, want %v", got, want)
	}
}

func TestParseEmptyInput(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader(""))
	if !errors.Is(err, ErrNoSteps) {
		t.Errorf("Parse(empty) error = %v, want ErrNoSteps", err)
	}
	if !IsConfigError(err) {
		t.Errorf("IsConfigError(%v) = false, want true", err)
	}
}

func TestParseNoSteps(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("env:\n  A: b\n"))
	if !errors.Is(err, ErrNoSteps) {
		t.Errorf("Parse error = %v, want ErrNoSteps", err)
	}
}

func TestParseEmptyStepSequence(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("steps: []\n"))
	if !errors.Is(err, ErrNoSteps) {
		t.Errorf("Parse error = %v, want ErrNoSteps", err)
	}
}

func TestParseUnknownStepType(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("steps:\n  - trigger: deploy\n"))
	if err == nil {
		t.Fatal("Parse error = nil, want unknown step type error")
	}
	if !IsConfigError(err) {
		t.Errorf("IsConfigError(%v) = false, want true", err)
	}
}

func TestParseMalformedYAML(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("steps: [whoops"))
	if err == nil {
		t.Fatal("Parse error = nil, want syntax error")
	}
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("error %v is not a *ConfigError", err)
	}
}

func TestParseStepAliases(t *testing.T) {
	t.Parallel()

	input := strings.NewReader(`---
steps:
  - &build
    label: Build
    command: make
  - wait
  - *build
`)
	p, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(input) error = %v", err)
	}
	if got, want := len(p.Steps), 3; got != want {
		t.Fatalf("len(p.Steps) = %d, want %d", got, want)
	}
	if diff := cmp.Diff(p.Steps[2], p.Steps[0], cmpOpts...); diff != "" {
		t.Errorf("aliased step diff (-got +want):\n%s", diff)
	}
}
