// Package metrics summarizes a simulated shooting phase interval by
// interval.
package metrics

import (
	"github.com/san-kum/ocptrans/internal/integrator"
	"github.com/san-kum/ocptrans/internal/model"
	"github.com/san-kum/ocptrans/internal/shooting"
	"gonum.org/v1/gonum/mat"
)

// Interval is one shooting interval of a simulated phase.
type Interval struct {
	Index  int
	T0, T1 float64
	X0, X1 []float64
	// U0 and U1 are the controls at the interval ends. They are equal for
	// constant controls and nil when the model has none.
	U0, U1 []float64
	// Defect is xf - x_{k+1}, nil when defects were not evaluated.
	Defect []float64
}

func (iv Interval) Duration() float64 { return iv.T1 - iv.T0 }

// Metric accumulates one scalar over the intervals of a phase.
type Metric interface {
	Name() string
	Observe(iv Interval)
	Value() float64
	Reset()
}

// Evaluate resets every metric, feeds it the intervals of traj in order and
// returns the values by name. controls holds one column per interval for
// constant controls and one per node for linear ones; defects, when not
// nil, one column per interval.
func Evaluate(traj *shooting.Trajectory, controls *mat.Dense, ct integrator.ControlType, defects *mat.Dense, ms ...Metric) map[string]float64 {
	for _, m := range ms {
		m.Reset()
	}

	_, nodes := traj.States.Dims()
	for k := 0; k+1 < nodes; k++ {
		iv := Interval{
			Index: k,
			T0:    traj.Times[k],
			T1:    traj.Times[k+1],
			X0:    mat.Col(nil, k, traj.States),
			X1:    mat.Col(nil, k+1, traj.States),
		}
		if controls != nil {
			iv.U0 = mat.Col(nil, k, controls)
			iv.U1 = iv.U0
			if ct == integrator.LinearContinuous {
				iv.U1 = mat.Col(nil, k+1, controls)
			}
		}
		if defects != nil {
			iv.Defect = mat.Col(nil, k, defects)
		}
		for _, m := range ms {
			m.Observe(iv)
		}
	}

	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}

// DefaultMetrics returns the metrics that apply to sys.
func DefaultMetrics(sys model.System, blocks []integrator.QuaternionBlock, params []float64) []Metric {
	ms := []Metric{NewContinuityDefect()}
	if sys.ControlDim() > 0 {
		ms = append(ms, NewControlEffort())
	}
	if h, ok := sys.(model.Hamiltonian); ok {
		ms = append(ms, NewEnergyDrift(h, params))
	}
	if len(blocks) > 0 {
		ms = append(ms, NewQuaternionDrift(blocks))
	}
	return ms
}
