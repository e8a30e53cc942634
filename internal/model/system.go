package model

import (
	"github.com/san-kum/ocptrans/internal/ad"
	"github.com/san-kum/ocptrans/internal/integrator"
)

// System is a symbolic ODE x' = f(x, u, p).
type System interface {
	Name() string
	StateDim() int
	ControlDim() int
	ParamDim() int
	Derive(x, u, p ad.Vector) ad.Vector
	// Skeleton is nil for models without generalized coordinates.
	Skeleton() *Skeleton
	DefaultState() []float64
	DefaultParams() []float64
}

// Configurable systems expose their fixed physical constants.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// Hamiltonian systems report their total mechanical energy.
type Hamiltonian interface {
	Energy(x, p []float64) float64
}

// IntegratorModel returns the skeleton of sys as an integrator.Model, or a
// nil interface when sys has none.
func IntegratorModel(sys System) integrator.Model {
	if s := sys.Skeleton(); s != nil {
		return s
	}
	return nil
}

// Symbolic returns the ODE of sys over fresh symbols, for controls with
// cols interpolation columns, together with its parameter symbols.
func Symbolic(sys System, cols int) (integrator.OdeSpec, ad.Vector) {
	spec := integrator.OdeSpec{
		State:    ad.SymVector("x", sys.StateDim()),
		Control:  ad.SymMatrix("u", sys.ControlDim(), cols),
		Dynamics: sys.Derive,
	}
	return spec, ad.SymVector("params", sys.ParamDim())
}

// Derivative compiles f as a function of x, u and p.
func Derivative(sys System) (*ad.Function, error) {
	x := ad.SymVector("x", sys.StateDim())
	u := ad.SymVector("u", sys.ControlDim())
	p := ad.SymVector("p", sys.ParamDim())
	return ad.NewFunction(sys.Name(),
		[]ad.Matrix{ad.ColumnMatrix(x), ad.ColumnMatrix(u), ad.ColumnMatrix(p)},
		[]ad.Matrix{ad.ColumnMatrix(sys.Derive(x, u, p))},
		[]string{"x", "u", "p"}, []string{"xdot"})
}
