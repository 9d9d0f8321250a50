package pipeline

import (
	"fmt"
	"strings"
)

// AxisValue is one axis of a matrix assignment.
type AxisValue struct {
	Axis  string
	Value string
}

// MatrixAssignment assigns a value to every axis of a matrix, in axis
// declaration order.
type MatrixAssignment []AxisValue

func (ma MatrixAssignment) String() string {
	parts := make([]string, len(ma))
	for i, av := range ma {
		parts[i] = av.Value
	}
	return strings.Join(parts, ", ")
}

// values returns the assignment as an axis-name lookup table.
func (ma MatrixAssignment) values() map[string]string {
	vs := make(map[string]string, len(ma))
	for _, av := range ma {
		vs[av.Axis] = av.Value
	}
	return vs
}

func (ma MatrixAssignment) equal(other MatrixAssignment) bool {
	if len(ma) != len(other) {
		return false
	}
	for i := range ma {
		if ma[i] != other[i] {
			return false
		}
	}
	return true
}

// Assignments computes the concrete assignments of the matrix: the cross
// product of the setup axes, in axis-major order (the first declared axis
// varies slowest), then each adjustment in turn either appends a new
// assignment or, if it skips, removes a matching one.
func (m *Matrix) Assignments() []MatrixAssignment {
	if m == nil || len(m.Setup) == 0 {
		return nil
	}

	count := 1
	for _, axis := range m.Setup {
		count *= len(axis.Values)
	}
	assignments := make([]MatrixAssignment, 0, count)

	// Walk the product by counting: index i selects one value per axis, with
	// the last axis varying fastest.
	for i := 0; i < count; i++ {
		ma := make(MatrixAssignment, len(m.Setup))
		rem := i
		for j := len(m.Setup) - 1; j >= 0; j-- {
			axis := m.Setup[j]
			ma[j] = AxisValue{Axis: axis.Name, Value: axis.Values[rem%len(axis.Values)]}
			rem /= len(axis.Values)
		}
		assignments = append(assignments, ma)
	}

	for _, adj := range m.Adjustments {
		ma := make(MatrixAssignment, 0, len(m.Setup))
		for _, axis := range m.Setup {
			if v, has := adj.With.Get(axis.Name); has {
				ma = append(ma, AxisValue{Axis: axis.Name, Value: v})
			}
		}

		if adj.ShouldSkip() {
			assignments = deleteAssignment(assignments, ma)
			continue
		}
		if !containsAssignment(assignments, ma) {
			assignments = append(assignments, ma)
		}
	}

	return assignments
}

func containsAssignment(as []MatrixAssignment, ma MatrixAssignment) bool {
	for _, a := range as {
		if a.equal(ma) {
			return true
		}
	}
	return false
}

func deleteAssignment(as []MatrixAssignment, ma MatrixAssignment) []MatrixAssignment {
	out := as[:0]
	for _, a := range as {
		if !a.equal(ma) {
			out = append(out, a)
		}
	}
	return out
}

// Expand returns a new pipeline in which every command step with a matrix is
// replaced with one concrete step per matrix assignment, in order, with all
// matrix tokens substituted. The receiver is not modified.
//
// Expand validates first, so undeclared placeholders and malformed matrices
// are reported as *ConfigError before any expansion happens.
func (p *Pipeline) Expand() (*Pipeline, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	out := &Pipeline{
		Env:             cloneOrderedMapSS(p.Env),
		RemainingFields: cloneAnyMap(p.RemainingFields),
		Steps:           make(Steps, 0, len(p.Steps)),
	}

	for i, step := range p.Steps {
		cs, ok := step.(*CommandStep)
		if !ok || cs.Matrix == nil {
			out.Steps = append(out.Steps, cloneStep(step))
			continue
		}

		expanded, err := cs.expand()
		if err != nil {
			return nil, wrapConfigError(fmt.Errorf("step %d: %w", i+1, err))
		}
		out.Steps = append(out.Steps, expanded...)
	}

	return out, nil
}

// expand instantiates the step once per matrix assignment. The returned steps
// have no matrix.
func (c *CommandStep) expand() (Steps, error) {
	assignments := c.Matrix.Assignments()
	steps := make(Steps, 0, len(assignments))

	for _, ma := range assignments {
		inst := c.clone()
		inst.Matrix = nil

		tf := newMatrixInterpolator(ma.values())
		if err := inst.interpolate(tf); err != nil {
			return nil, fmt.Errorf("assignment (%v): %w", ma, err)
		}
		steps = append(steps, inst)
	}

	return steps, nil
}

func cloneStep(s Step) Step {
	switch t := s.(type) {
	case *CommandStep:
		return t.clone()
	case *BlockStep:
		return t.clone()
	case *WaitStep:
		return t.clone()
	default:
		// The Step sum is closed, so this is unreachable.
		return s
	}
}
