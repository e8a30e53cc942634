package ad

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// RootSolver finds z with residual(z) = 0 starting from z0.
type RootSolver interface {
	Solve(residual func(z []float64) ([]float64, error), jacobian func(z []float64) (*mat.Dense, error), z0 []float64) ([]float64, error)
}

// Newton is a full-step Newton iteration. It stops when the residual or the
// step falls below its tolerance, measured in the infinity norm.
type Newton struct {
	MaxIter    int
	AbsTol     float64
	AbsTolStep float64
}

func DefaultNewton() *Newton {
	return &Newton{
		MaxIter:    1000,
		AbsTol:     1e-12,
		AbsTolStep: 1e-12,
	}
}

func (n *Newton) Solve(residual func([]float64) ([]float64, error), jacobian func([]float64) (*mat.Dense, error), z0 []float64) ([]float64, error) {
	z := make([]float64, len(z0))
	copy(z, z0)

	rnorm := math.Inf(1)
	for it := 0; it < n.MaxIter; it++ {
		r, err := residual(z)
		if err != nil {
			return nil, err
		}
		rnorm = floats.Norm(r, math.Inf(1))
		if math.IsNaN(rnorm) || math.IsInf(rnorm, 0) {
			return nil, &SolveError{Iterations: it, Residual: rnorm, Wrapped: ErrNoConvergence}
		}
		if rnorm <= n.AbsTol {
			return z, nil
		}

		jac, err := jacobian(z)
		if err != nil {
			return nil, err
		}
		var dz mat.VecDense
		if err := dz.SolveVec(jac, mat.NewVecDense(len(r), r)); err != nil && !wellConditioned(err) {
			return nil, &SolveError{Iterations: it, Residual: rnorm, Wrapped: ErrSingular}
		}
		step := dz.RawVector().Data
		floats.Sub(z, step)
		if floats.Norm(step, math.Inf(1)) <= n.AbsTolStep {
			return z, nil
		}
	}
	return nil, &SolveError{Iterations: n.MaxIter, Residual: rnorm, Wrapped: ErrNoConvergence}
}

// wellConditioned reports whether a solve error is only an ill-conditioning
// warning with a usable result.
func wellConditioned(err error) bool {
	var c mat.Condition
	return errors.As(err, &c) && !math.IsInf(float64(c), 1)
}
