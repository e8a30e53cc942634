package ad

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/dual"
)

// Jacobian returns the derivative of output out with respect to input in,
// evaluated at args. Rows follow the column-major entries of the output and
// columns those of the input. The result is nil when either port is empty.
func (f *Function) Jacobian(out, in int, args ...mat.Matrix) (*mat.Dense, error) {
	if out < 0 || out >= f.NumOut() || in < 0 || in >= f.NumIn() {
		return nil, fmt.Errorf("%w: %s has no jacobian block (%d,%d)", ErrUnknownPort, f.name, out, in)
	}
	flat, err := f.flatten(args)
	if err != nil {
		return nil, err
	}
	return f.jacobian(out, in, flat)
}

func (f *Function) jacobian(out, in int, flat [][]float64) (*mat.Dense, error) {
	m := f.outDims[out][0] * f.outDims[out][1]
	n := f.inDims[in][0] * f.inDims[in][1]
	if m == 0 || n == 0 {
		return nil, nil
	}
	if f.backend == FiniteDiff {
		return f.jacobianFD(out, in, flat, m, n)
	}
	return f.jacobianDual(out, in, flat, m, n)
}

func (f *Function) jacobianDual(out, in int, flat [][]float64, m, n int) (*mat.Dense, error) {
	args := make([][]dual.Number, len(flat))
	for k, v := range flat {
		args[k] = make([]dual.Number, len(v))
		for i, x := range v {
			args[k][i] = dual.Number{Real: x}
		}
	}

	jac := mat.NewDense(m, n, nil)
	for j := 0; j < n; j++ {
		args[in][j].Emag = 1
		outs, err := run[dual.Number](f, dualArith{}, args)
		args[in][j].Emag = 0
		if err != nil {
			return nil, err
		}
		for i, d := range outs[out] {
			jac.Set(i, j, d.Emag)
		}
	}
	return jac, nil
}

func (f *Function) jacobianFD(out, in int, flat [][]float64, m, n int) (*mat.Dense, error) {
	var evalErr error
	fn := func(y, x []float64) {
		args := make([][]float64, len(flat))
		copy(args, flat)
		args[in] = x
		outs, err := run[float64](f, realArith{}, args)
		if err != nil {
			if evalErr == nil {
				evalErr = err
			}
			for i := range y {
				y[i] = math.NaN()
			}
			return
		}
		copy(y, outs[out])
	}

	x := append([]float64(nil), flat[in]...)
	jac := mat.NewDense(m, n, nil)
	fd.Jacobian(jac, fn, x, &fd.JacobianSettings{Formula: fd.Central})
	if evalErr != nil {
		return nil, evalErr
	}
	return jac, nil
}
