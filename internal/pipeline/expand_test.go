package pipeline

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wheelhouse-ci/wheelhouse/internal/ordered"
	"gopkg.in/yaml.v3"
)

const wheelPipelineYAML = `---
steps:
  - label: ":python: Build cuda={{matrix.cuda_version}} py={{matrix.python_version}}"
    agents:
      queue: gpu-builders
    commands:
      - docker build --build-arg CUDA_VERSION={{matrix.cuda_version}} --build-arg PYTHON_VERSION={{matrix.python_version}} --tag wheelbuilder .
      - docker run wheelbuilder
    matrix:
      setup:
        cuda_version:
          - "11.8.0"
          - "12.1.0"
        python_version:
          - "3.8"
          - "3.9"
          - "3.10"
          - "3.11"
  - block: "Upload wheels?"
  - label: ":arrow_up: Upload"
    command: ./upload.sh
`

func TestExpandWheelPipeline(t *testing.T) {
	t.Parallel()

	p, err := Parse(strings.NewReader(wheelPipelineYAML))
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}

	exp, err := p.Expand()
	if err != nil {
		t.Fatalf("p.Expand() error = %v", err)
	}

	// 2 CUDA versions x 4 Python versions, plus the block and upload steps.
	if got, want := len(exp.Steps), 8+2; got != want {
		t.Fatalf("len(exp.Steps) = %d, want %d", got, want)
	}

	// The first declared axis (cuda_version) varies slowest.
	wantLabels := []string{
		":python: Build cuda=11.8.0 py=3.8",
		":python: Build cuda=11.8.0 py=3.9",
		":python: Build cuda=11.8.0 py=3.10",
		":python: Build cuda=11.8.0 py=3.11",
		":python: Build cuda=12.1.0 py=3.8",
		":python: Build cuda=12.1.0 py=3.9",
		":python: Build cuda=12.1.0 py=3.10",
		":python: Build cuda=12.1.0 py=3.11",
	}
	for i, want := range wantLabels {
		cs, ok := exp.Steps[i].(*CommandStep)
		if !ok {
			t.Fatalf("exp.Steps[%d] is %T, want *CommandStep", i, exp.Steps[i])
		}
		if cs.Label != want {
			t.Errorf("exp.Steps[%d].Label = %q, want %q", i, cs.Label, want)
		}
		if cs.Matrix != nil {
			t.Errorf("exp.Steps[%d].Matrix = %v, want nil", i, cs.Matrix)
		}
		for _, cmd := range cs.Commands {
			if strings.Contains(cmd, "{{") {
				t.Errorf("exp.Steps[%d] command %q contains an unresolved token", i, cmd)
			}
		}
	}

	// Non-matrix steps pass through in position.
	if _, ok := exp.Steps[8].(*BlockStep); !ok {
		t.Errorf("exp.Steps[8] is %T, want *BlockStep", exp.Steps[8])
	}
	if _, ok := exp.Steps[9].(*CommandStep); !ok {
		t.Errorf("exp.Steps[9] is %T, want *CommandStep", exp.Steps[9])
	}
}

func TestExpandLeavesInputUntouched(t *testing.T) {
	t.Parallel()

	p, err := Parse(strings.NewReader(wheelPipelineYAML))
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	before, err := yaml.Marshal(p)
	if err != nil {
		t.Fatalf("yaml.Marshal error = %v", err)
	}

	if _, err := p.Expand(); err != nil {
		t.Fatalf("p.Expand() error = %v", err)
	}

	after, err := yaml.Marshal(p)
	if err != nil {
		t.Fatalf("yaml.Marshal error = %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Errorf("input pipeline changed during expansion:\nbefore: %s\nafter: %s", before, after)
	}
}

func TestExpandedPipelineRoundTrips(t *testing.T) {
	t.Parallel()

	p, err := Parse(strings.NewReader(wheelPipelineYAML))
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	exp, err := p.Expand()
	if err != nil {
		t.Fatalf("p.Expand() error = %v", err)
	}

	out, err := yaml.Marshal(exp)
	if err != nil {
		t.Fatalf("yaml.Marshal error = %v", err)
	}
	back, err := Parse(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Parse(marshaled) error = %v", err)
	}
	if diff := cmp.Diff(back, exp, cmpOpts...); diff != "" {
		t.Errorf("round-trip diff (-got +want):\n%s", diff)
	}
}

func TestExpandCountIsAxisProduct(t *testing.T) {
	t.Parallel()

	m := &Matrix{Setup: MatrixSetup{
		{Name: "a", Values: []string{"1", "2", "3"}},
		{Name: "b", Values: []string{"x", "y"}},
		{Name: "c", Values: []string{"p", "q", "r", "s"}},
	}}
	if got, want := len(m.Assignments()), 3*2*4; got != want {
		t.Errorf("len(m.Assignments()) = %d, want %d", got, want)
	}
}

func TestExpandAnonymousAxis(t *testing.T) {
	t.Parallel()

	input := `---
steps:
  - label: "Test {{matrix}}"
    command: "pytest --python={{ matrix }}"
    matrix:
      - "3.10"
      - "3.11"
`
	p, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	exp, err := p.Expand()
	if err != nil {
		t.Fatalf("p.Expand() error = %v", err)
	}

	var labels, cmds []string
	for _, s := range exp.Steps {
		cs := s.(*CommandStep)
		labels = append(labels, cs.Label)
		cmds = append(cmds, cs.Commands...)
	}
	if diff := cmp.Diff(labels, []string{"Test 3.10", "Test 3.11"}); diff != "" {
		t.Errorf("label diff (-got +want):\n%s", diff)
	}
	wantCmds := []string{"pytest --python=3.10", "pytest --python=3.11"}
	if diff := cmp.Diff(cmds, wantCmds); diff != "" {
		t.Errorf("command diff (-got +want):\n%s", diff)
	}
}

func TestExpandAdjustments(t *testing.T) {
	t.Parallel()

	input := `---
steps:
  - label: "Build {{matrix.os}}/{{matrix.arch}}"
    command: make
    matrix:
      setup:
        os: [linux, darwin]
        arch: [amd64, arm64]
      adjustments:
        - with:
            os: darwin
            arch: amd64
          skip: "no darwin amd64 builders"
        - with:
            os: windows
            arch: amd64
`
	p, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	// "windows" is not among the os axis values. That's fine: adjustments may
	// introduce new values, only the axis names must be declared.
	exp, err := p.Expand()
	if err != nil {
		t.Fatalf("p.Expand() error = %v", err)
	}

	var labels []string
	for _, s := range exp.Steps {
		labels = append(labels, s.(*CommandStep).Label)
	}
	want := []string{
		"Build linux/amd64",
		"Build linux/arm64",
		// darwin/amd64 skipped
		"Build darwin/arm64",
		"Build windows/amd64", // appended by the second adjustment
	}
	if diff := cmp.Diff(labels, want); diff != "" {
		t.Errorf("label diff (-got +want):\n%s", diff)
	}
}

func TestExpandAllAssignmentsSkipped(t *testing.T) {
	t.Parallel()

	input := `---
steps:
  - label: "Build {{matrix.os}}"
    command: make
    matrix:
      setup:
        os: [darwin]
      adjustments:
        - with:
            os: darwin
          skip: true
  - block: "Publish?"
`
	p, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	exp, err := p.Expand()
	if err != nil {
		t.Fatalf("p.Expand() error = %v", err)
	}

	// A matrix whose every assignment is skipped contributes no steps; the
	// rest of the pipeline is unaffected.
	if got, want := len(exp.Steps), 1; got != want {
		t.Fatalf("len(exp.Steps) = %d, want %d", got, want)
	}
	if _, ok := exp.Steps[0].(*BlockStep); !ok {
		t.Errorf("exp.Steps[0] = %T, want *BlockStep", exp.Steps[0])
	}
}

func TestExpandUndeclaredPlaceholder(t *testing.T) {
	t.Parallel()

	input := `---
steps:
  - label: "Build {{matrix.cuda}}"
    command: make
    matrix:
      setup:
        python: ["3.10"]
`
	p, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}

	_, err = p.Expand()
	if err == nil {
		t.Fatal("p.Expand() error = nil, want undeclared-axis error")
	}
	if !IsConfigError(err) {
		t.Errorf("IsConfigError(%v) = false, want true", err)
	}
	if !strings.Contains(err.Error(), "cuda") {
		t.Errorf("error %q does not name the undeclared axis", err)
	}
}

func TestExpandPlaceholderWithoutMatrix(t *testing.T) {
	t.Parallel()

	input := `---
steps:
  - label: "Build {{matrix.python}}"
    command: make
`
	p, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	if _, err := p.Expand(); err == nil {
		t.Error("p.Expand() error = nil, want undeclared-axis error")
	}
}

func TestValidateRequiresLabel(t *testing.T) {
	t.Parallel()

	p := &Pipeline{Steps: Steps{
		&CommandStep{Commands: []string{"make"}},
	}}
	err := p.Validate()
	if err == nil {
		t.Fatal("p.Validate() error = nil, want label error")
	}
	if !IsConfigError(err) {
		t.Errorf("IsConfigError(%v) = false, want true", err)
	}
}

func TestExpandMatrixEnvAndAgents(t *testing.T) {
	t.Parallel()

	input := `---
steps:
  - label: "Build py {{matrix.python}}"
    command: make wheel
    env:
      PYTHON_VERSION: "{{matrix.python}}"
    agents:
      queue: "builders-py{{matrix.python}}"
    matrix:
      setup:
        python: ["3.10", "3.11"]
`
	p, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	exp, err := p.Expand()
	if err != nil {
		t.Fatalf("p.Expand() error = %v", err)
	}

	cs := exp.Steps[1].(*CommandStep)
	wantEnv := ordered.MapFromItems(
		ordered.TupleSS{Key: "PYTHON_VERSION", Value: "3.11"},
	)
	if !ordered.EqualSS(cs.Env, wantEnv) {
		t.Errorf("cs.Env = %v, want %v", cs.Env, wantEnv)
	}
	if q, _ := cs.Agents.Get("queue"); q != "builders-py3.11" {
		t.Errorf(`cs.Agents.Get("queue") = %q, want "builders-py3.11"`, q)
	}
}
