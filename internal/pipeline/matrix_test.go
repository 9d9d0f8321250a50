package pipeline

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wheelhouse-ci/wheelhouse/internal/ordered"
	"gopkg.in/yaml.v3"
)

func TestMatrixUnmarshalBareSequence(t *testing.T) {
	t.Parallel()

	var m Matrix
	if err := yaml.Unmarshal([]byte(`["3.9", "3.10", "3.11"]`), &m); err != nil {
		t.Fatalf("yaml.Unmarshal error = %v", err)
	}

	want := Matrix{Setup: MatrixSetup{
		{Name: "", Values: []string{"3.9", "3.10", "3.11"}},
	}}
	if diff := cmp.Diff(m, want, cmpOpts...); diff != "" {
		t.Errorf("matrix diff (-got +want):\n%s", diff)
	}
}

func TestMatrixUnmarshalSetupMapping(t *testing.T) {
	t.Parallel()

	input := `
setup:
  cuda_version:
    - "11.8.0"
    - "12.1.0"
  python_version:
    - "3.8"
    - "3.9"
adjustments:
  - with:
      cuda_version: "12.1.0"
      python_version: "3.8"
    skip: true
  - with:
      cuda_version: "11.8.0"
      python_version: "3.12"
`
	var m Matrix
	if err := yaml.Unmarshal([]byte(input), &m); err != nil {
		t.Fatalf("yaml.Unmarshal error = %v", err)
	}

	want := Matrix{
		Setup: MatrixSetup{
			{Name: "cuda_version", Values: []string{"11.8.0", "12.1.0"}},
			{Name: "python_version", Values: []string{"3.8", "3.9"}},
		},
		Adjustments: MatrixAdjustments{
			{
				With: ordered.MapFromItems(
					ordered.TupleSS{Key: "cuda_version", Value: "12.1.0"},
					ordered.TupleSS{Key: "python_version", Value: "3.8"},
				),
				Skip: true,
			},
			{
				With: ordered.MapFromItems(
					ordered.TupleSS{Key: "cuda_version", Value: "11.8.0"},
					ordered.TupleSS{Key: "python_version", Value: "3.12"},
				),
			},
		},
	}
	if diff := cmp.Diff(m, want, cmpOpts...); diff != "" {
		t.Errorf("matrix diff (-got +want):\n%s", diff)
	}
}

func TestMatrixSetupPreservesAxisOrder(t *testing.T) {
	t.Parallel()

	input := `
setup:
  zeta: ["1"]
  alpha: ["2"]
  mid: ["3"]
`
	var m Matrix
	if err := yaml.Unmarshal([]byte(input), &m); err != nil {
		t.Fatalf("yaml.Unmarshal error = %v", err)
	}

	var names []string
	for _, axis := range m.Setup {
		names = append(names, axis.Name)
	}
	want := []string{"zeta", "alpha", "mid"}
	if diff := cmp.Diff(names, want); diff != "" {
		t.Errorf("axis order diff (-got +want):\n%s", diff)
	}
}

func TestMatrixRejectsNonScalarValues(t *testing.T) {
	t.Parallel()

	var m Matrix
	err := yaml.Unmarshal([]byte("setup:\n  os:\n    - [nested]\n"), &m)
	if err == nil {
		t.Error("yaml.Unmarshal error = nil, want scalar-values error")
	}
}

func TestMatrixValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		matrix  *Matrix
		wantErr bool
	}{
		{
			name:   "nil matrix",
			matrix: nil,
		},
		{
			name: "single axis",
			matrix: &Matrix{Setup: MatrixSetup{
				{Name: "os", Values: []string{"linux"}},
			}},
		},
		{
			name:    "no axes",
			matrix:  &Matrix{},
			wantErr: true,
		},
		{
			name: "axis with no values",
			matrix: &Matrix{Setup: MatrixSetup{
				{Name: "os", Values: nil},
			}},
			wantErr: true,
		},
		{
			name: "duplicate axis",
			matrix: &Matrix{Setup: MatrixSetup{
				{Name: "os", Values: []string{"linux"}},
				{Name: "os", Values: []string{"darwin"}},
			}},
			wantErr: true,
		},
		{
			name: "adjustment missing an axis",
			matrix: &Matrix{
				Setup: MatrixSetup{
					{Name: "os", Values: []string{"linux"}},
					{Name: "arch", Values: []string{"amd64"}},
				},
				Adjustments: MatrixAdjustments{{
					With: ordered.MapFromItems(
						ordered.TupleSS{Key: "os", Value: "darwin"},
					),
				}},
			},
			wantErr: true,
		},
		{
			name: "adjustment with undeclared axis",
			matrix: &Matrix{
				Setup: MatrixSetup{
					{Name: "os", Values: []string{"linux"}},
				},
				Adjustments: MatrixAdjustments{{
					With: ordered.MapFromItems(
						ordered.TupleSS{Key: "arch", Value: "arm64"},
					),
				}},
			},
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			err := test.matrix.validate()
			if gotErr := err != nil; gotErr != test.wantErr {
				t.Errorf("validate() error = %v, wantErr = %t", err, test.wantErr)
			}
		})
	}
}

func TestMatrixShouldSkip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		skip any
		want bool
	}{
		{skip: nil, want: false},
		{skip: false, want: false},
		{skip: true, want: true},
		{skip: "", want: false},
		{skip: "broken on CUDA 11", want: true},
	}
	for _, test := range tests {
		adj := &MatrixAdjustment{Skip: test.skip}
		if got := adj.ShouldSkip(); got != test.want {
			t.Errorf("ShouldSkip() with skip = %v: got %t, want %t", test.skip, got, test.want)
		}
	}
}

func TestMatrixYAMLRoundTripSimple(t *testing.T) {
	t.Parallel()

	m := &Matrix{Setup: MatrixSetup{
		{Name: "", Values: []string{"a", "b"}},
	}}
	out, err := yaml.Marshal(m)
	if err != nil {
		t.Fatalf("yaml.Marshal error = %v", err)
	}

	var got Matrix
	if err := yaml.Unmarshal(out, &got); err != nil {
		t.Fatalf("yaml.Unmarshal error = %v", err)
	}
	if diff := cmp.Diff(&got, m, cmpOpts...); diff != "" {
		t.Errorf("round-trip diff (-got +want):\n%s", diff)
	}
	// The simple form should marshal back to a bare sequence.
	if strings.Contains(string(out), "setup") {
		t.Errorf("yaml.Marshal output = %q, want bare sequence form", out)
	}
}

func TestMatrixYAMLRoundTripFull(t *testing.T) {
	t.Parallel()

	m := &Matrix{
		Setup: MatrixSetup{
			{Name: "cuda_version", Values: []string{"11.8.0", "12.1.0"}},
			{Name: "python_version", Values: []string{"3.8", "3.9"}},
		},
		Adjustments: MatrixAdjustments{{
			With: ordered.MapFromItems(
				ordered.TupleSS{Key: "cuda_version", Value: "12.1.0"},
				ordered.TupleSS{Key: "python_version", Value: "3.9"},
			),
			Skip: "flaky",
		}},
	}
	out, err := yaml.Marshal(m)
	if err != nil {
		t.Fatalf("yaml.Marshal error = %v", err)
	}

	var got Matrix
	if err := yaml.Unmarshal(out, &got); err != nil {
		t.Fatalf("yaml.Unmarshal error = %v", err)
	}
	if diff := cmp.Diff(&got, m, cmpOpts...); diff != "" {
		t.Errorf("round-trip diff (-got +want):\n%s", diff)
	}
}
