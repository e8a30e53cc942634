package ad

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/dual"
)

type rootCall struct {
	rf   *Rootfinder
	args Vector
}

// Rootfinder defines z implicitly through residual(z, p1, p2, ...) = 0.
// The first residual input is the unknown and the first output the
// residual; both must have the same number of entries.
type Rootfinder struct {
	name     string
	residual *Function
	solver   RootSolver
	n        int
}

// NewRootfinder wraps residual. A nil solver selects DefaultNewton.
func NewRootfinder(name string, residual *Function, solver RootSolver) (*Rootfinder, error) {
	if residual.NumIn() < 1 || residual.NumOut() < 1 {
		return nil, fmt.Errorf("%w: rootfinder %q needs a residual with an unknown and an output", ErrShape, name)
	}
	zr, zc := residual.InputDims(0)
	rr, rc := residual.OutputDims(0)
	if zr*zc == 0 || zr*zc != rr*rc {
		return nil, fmt.Errorf("%w: rootfinder %q residual is %dx%d for %dx%d unknowns", ErrShape, name, rr, rc, zr, zc)
	}
	if solver == nil {
		solver = DefaultNewton()
	}
	return &Rootfinder{name: name, residual: residual, solver: solver, n: zr * zc}, nil
}

func (r *Rootfinder) Name() string { return r.name }

// Call returns expressions for the root, starting the solve at guess and
// treating params as the remaining residual inputs.
func (r *Rootfinder) Call(guess Vector, params ...Matrix) (Vector, error) {
	if len(guess) != r.n {
		return nil, fmt.Errorf("%w: rootfinder %q guess has %d entries, want %d", ErrShape, r.name, len(guess), r.n)
	}
	if len(params) != r.residual.NumIn()-1 {
		return nil, fmt.Errorf("%w: rootfinder %q takes %d parameters, got %d", ErrShape, r.name, r.residual.NumIn()-1, len(params))
	}
	args := guess.Clone()
	for k, p := range params {
		pr, pc := r.residual.InputDims(k + 1)
		if p.rows != pr || p.cols != pc {
			return nil, fmt.Errorf("%w: rootfinder %q parameter %d is %dx%d, want %dx%d", ErrShape, r.name, k, p.rows, p.cols, pr, pc)
		}
		args = append(args, p.data...)
	}
	return r.call(args), nil
}

func (r *Rootfinder) call(args Vector) Vector {
	rc := &rootCall{rf: r, args: args}
	out := make(Vector, r.n)
	for i := range out {
		out[i] = &Expr{op: opRoot, call: rc, out: i}
	}
	return out
}

// split turns flat call arguments (unknown first) into residual inputs.
func split[T any](r *Rootfinder, flat []T) [][]T {
	args := make([][]T, r.residual.NumIn())
	off := 0
	for k := range args {
		rows, cols := r.residual.InputDims(k)
		args[k] = flat[off : off+rows*cols]
		off += rows * cols
	}
	return args
}

func concat(a, b []float64) []float64 {
	out := make([]float64, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func (r *Rootfinder) solve(args []float64) ([]float64, error) {
	guess, params := args[:r.n], args[r.n:]
	residual := func(z []float64) ([]float64, error) {
		outs, err := run[float64](r.residual, realArith{}, split(r, concat(z, params)))
		if err != nil {
			return nil, err
		}
		return outs[0], nil
	}
	jacobian := func(z []float64) (*mat.Dense, error) {
		return r.residual.jacobian(0, 0, split(r, concat(z, params)))
	}

	z, err := r.solver.Solve(residual, jacobian, guess)
	if err != nil {
		var se *SolveError
		if errors.As(err, &se) {
			se.Name = "rootfinder " + r.name
			return nil, se
		}
		return nil, fmt.Errorf("rootfinder %q: %w", r.name, err)
	}
	return z, nil
}

// solveDual solves on the real parts, then carries tangents through the
// root with the implicit function theorem: J_z dz = -J_p dp.
func (r *Rootfinder) solveDual(args []dual.Number) ([]dual.Number, error) {
	reals := make([]float64, len(args))
	for i, a := range args {
		reals[i] = a.Real
	}
	z, err := r.solve(reals)
	if err != nil {
		return nil, err
	}

	at := make([]dual.Number, len(args))
	copy(at, args)
	for i := range z {
		at[i] = dual.Number{Real: z[i]}
	}
	outs, err := run[dual.Number](r.residual, dualArith{}, split(r, at))
	if err != nil {
		return nil, err
	}

	res := make([]dual.Number, r.n)
	rhs := make([]float64, r.n)
	seeded := false
	for i := range res {
		res[i].Real = z[i]
		rhs[i] = -outs[0][i].Emag
		if rhs[i] != 0 {
			seeded = true
		}
	}
	if !seeded {
		return res, nil
	}

	jz, err := r.residual.jacobian(0, 0, split(r, concat(z, reals[r.n:])))
	if err != nil {
		return nil, err
	}
	var dz mat.VecDense
	if err := dz.SolveVec(jz, mat.NewVecDense(r.n, rhs)); err != nil && !wellConditioned(err) {
		return nil, fmt.Errorf("rootfinder %q: %w", r.name, ErrSingular)
	}
	for i := range res {
		res[i].Emag = dz.AtVec(i)
	}
	return res, nil
}
